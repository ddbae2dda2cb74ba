package narrative

import (
	"context"

	"github.com/ezoic/marketlens/internal/insights"
	"github.com/ezoic/marketlens/internal/query"
	"github.com/ezoic/marketlens/internal/similarity"
)

const (
	marketSystem = "You are a market analysis expert specializing in e-commerce and apparel."
	marketPrompt = `As a market analysis expert, provide detailed insights about the apparel market based on the data below.

Please analyze:
1. Overall market positioning and pricing strategy
2. Consumer preferences based on features
3. Market engagement trends based on reviews
4. Key recommendations for new entrants

Format your response in clear sections with bullet points where appropriate.
Be specific and provide actionable insights based on the numbers. Use ₹ (INR) for all prices.`

	competitiveSystem = "You are a product strategy expert specializing in competitive analysis."
	competitivePrompt = `As a product strategy expert, analyze the competing products below against the user's product.

Provide a detailed competitive analysis including:
1. Price Positioning Analysis
- How does the user's product price compare to competitors?
- What's the optimal price point based on the market?

2. Product Feature Analysis
- What features are common among successful competitors?
- What unique features could differentiate the user's product?

3. Market Performance Indicators
- Analysis of ratings and reviews compared to competitors
- Identify what drives higher ratings in this category

4. Specific Recommendations
- Clear, actionable steps to improve competitiveness
- Potential areas for differentiation

Format your response in clear sections. Be specific and data-driven in your analysis. Use ₹ (INR) for all prices, and address the client directly.`
)

// ProductFeatures names the categorical choices of a product.
type ProductFeatures struct {
	Material   string `json:"material"`
	NeckType   string `json:"neck_type"`
	SleeveType string `json:"sleeve_type"`
}

// UserProduct is the user product as sent to the service.
type UserProduct struct {
	Price            float64         `json:"price"`
	ReviewGrowthRate float64         `json:"review_growth_rate"`
	Features         ProductFeatures `json:"features"`
}

// Competitor is one similar catalog product as sent to the service.
type Competitor struct {
	Title              string          `json:"title"`
	Price              float64         `json:"price"`
	Rating             float64         `json:"rating"`
	Reviews            int             `json:"reviews"`
	ProductLink        string          `json:"product_link"`
	Source             string          `json:"source"`
	ProductDetails     string          `json:"product_details"`
	AdditionalFeatures string          `json:"additional_features"`
	Features           ProductFeatures `json:"features"`
	SimilarityScore    float64         `json:"similarity_score"`
}

type competitivePayload struct {
	UserProduct UserProduct  `json:"user_product"`
	Competitors []Competitor `json:"competing_products"`
}

// MarketInsightsRequest builds the market overview request.
func MarketInsightsRequest(summary *insights.MarketSummary) Request {
	return Request{System: marketSystem, Instruction: marketPrompt, Payload: summary}
}

// MarketInsights asks s for a narrative overview of the market summary.
func MarketInsights(ctx context.Context, s Summarizer, summary *insights.MarketSummary) (string, error) {
	return s.Summarize(ctx, MarketInsightsRequest(summary))
}

// CompetitiveAnalysisRequest builds the competitive analysis request for q
// against its ranked matches.
func CompetitiveAnalysisRequest(q query.Product, matches []similarity.Match) Request {
	payload := competitivePayload{
		UserProduct: UserProduct{
			Price:            q.Price,
			ReviewGrowthRate: q.GrowthRate(query.DefaultReviewGrowthRate),
			Features: ProductFeatures{
				Material: q.Material, NeckType: q.NeckType, SleeveType: q.SleeveType,
			},
		},
		Competitors: make([]Competitor, 0, len(matches)),
	}
	for _, m := range matches {
		payload.Competitors = append(payload.Competitors, Competitor{
			Title:              m.Detail.Title,
			Price:              m.Product.Price,
			Rating:             m.Product.Rating,
			Reviews:            m.Product.Reviews,
			ProductLink:        m.Detail.ProductLink,
			Source:             m.Detail.Source,
			ProductDetails:     m.Detail.ProductDetails,
			AdditionalFeatures: m.Detail.AdditionalFeatures,
			Features: ProductFeatures{
				Material:   m.Product.Material(),
				NeckType:   m.Product.NeckType(),
				SleeveType: m.Product.SleeveType(),
			},
			SimilarityScore: m.Score,
		})
	}
	return Request{System: competitiveSystem, Instruction: competitivePrompt, Payload: payload}
}

// CompetitiveAnalysis asks s to compare q with its most similar products.
func CompetitiveAnalysis(ctx context.Context, s Summarizer, q query.Product, matches []similarity.Match) (string, error) {
	return s.Summarize(ctx, CompetitiveAnalysisRequest(q, matches))
}
