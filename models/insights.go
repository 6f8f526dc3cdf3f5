package models

import "time"

// InsightReport holds the summary statistics computed over a panel.
type InsightReport struct {
	Panel        string
	TotalRows    int
	Countries    int
	FirstMonth   time.Time
	LastMonth    time.Time
	Columns      []string
	Completeness []YearCompleteness
	Correlation  *CorrelationMatrix
	Baseline     *BaselineScore
}

// YearCompleteness is the non-null share of each column within one year.
type YearCompleteness struct {
	Year  int
	Share map[string]float64
}

// CorrelationMatrix holds pairwise Pearson correlations over complete pairs.
// Cells without at least two complete pairs are NaN.
type CorrelationMatrix struct {
	FromYear int
	ToYear   int
	Columns  []string
	Values   [][]float64
}

// BaselineScore is the accuracy of a naive forecast of the target.
type BaselineScore struct {
	Model  string
	Target string
	N      int
	RMSE   float64
	MAE    float64
	MAPE   float64
}
