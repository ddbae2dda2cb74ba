package log

// Standard field keys.
const (
	ComponentKey  = "component"
	ModelNameKey  = "model_name"
	OperationKey  = "operation"
	PhaseKey      = "phase"
	SamplesKey    = "samples"
	FeaturesKey   = "features"
	PredsKey      = "predictions"
	DurationMsKey = "duration_ms"
	ErrorKey      = "error"
	PathKey       = "path"
)

// Operation values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationLoad      = "load"
	OperationSave      = "save"
	OperationRank      = "rank"
	OperationForecast  = "forecast"
	OperationSummarize = "summarize"
)

// Phase values.
const (
	PhaseIngestion  = "ingestion"
	PhaseTraining   = "training"
	PhaseInference  = "inference"
	PhaseEvaluation = "evaluation"
	PhaseReporting  = "reporting"
)
