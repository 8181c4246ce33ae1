package models

import "time"

// Category is one label out of the fixed reporting category set. The set is
// defined by the classifier's table plus its keyword rules; Uncategorized only
// appears when a record's product name was never handed to the classifier.
type Category string

const (
	CategoryCustomOrder   Category = "Custom Order"
	CategoryRakAksesoris  Category = "Rak & Aksesoris Meja"
	CategoryMiscellaneous Category = "Miscellaneous"
	CategoryUncategorized Category = "Uncategorized"
)

// SalesRecord is one normalized product line. Date, Customer and City are
// inherited from the transaction header row that preceded the line in the
// source export.
type SalesRecord struct {
	Date        time.Time `json:"date"`
	Customer    string    `json:"customer"`
	City        string    `json:"city"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	TotalPrice  int64     `json:"total_price"`
	Month       string    `json:"month"`
	Category    Category  `json:"category"`
	Source      string    `json:"source,omitempty"`
}

// MonthKey is the year-month grouping key format used across the module.
const MonthKey = "2006-01"

type ProductSales struct {
	Category    Category `json:"category"`
	ProductName string   `json:"product_name"`
	Quantity    int      `json:"quantity"`
}

type MonthlySales struct {
	Month   string `json:"month"`
	Revenue int64  `json:"revenue"`
}

// CityPivotRow is one product row of the product-by-city quantity pivot.
// Quantities is keyed by city; cities absent from the map sold zero.
type CityPivotRow struct {
	ProductName string         `json:"product_name"`
	Quantities  map[string]int `json:"quantities"`
	Total       int            `json:"total"`
}

type CityPivot struct {
	Cities []string       `json:"cities"`
	Rows   []CityPivotRow `json:"rows"`
}

type ABCEntry struct {
	ProductName string  `json:"product_name"`
	Revenue     int64   `json:"revenue"`
	Percentage  float64 `json:"percentage"`
	Cumulative  float64 `json:"cumulative"`
	Class       string  `json:"class"`
}

type ABCSummary struct {
	Class        string  `json:"class"`
	ProductCount int     `json:"product_count"`
	Revenue      int64   `json:"revenue"`
	Contribution float64 `json:"contribution"`
}

type ABCReport struct {
	Entries   []ABCEntry   `json:"entries"`
	Summaries []ABCSummary `json:"summaries"`
}

// LoyaltyMetric selects which count drives customer tiering.
type LoyaltyMetric string

const (
	LoyaltyByDays         LoyaltyMetric = "days"
	LoyaltyByTransactions LoyaltyMetric = "transactions"
)

const (
	TierVeryLoyal      = "Very Loyal"
	TierLoyal          = "Loyal"
	TierPotentialLoyal = "Potential Loyal"
	TierNew            = "New"
)

type CustomerLoyalty struct {
	Customer        string `json:"customer"`
	TransactionDays int    `json:"transaction_days"`
	Transactions    int    `json:"transactions"`
	Revenue         int64  `json:"revenue"`
	Tier            string `json:"tier"`
}

type LoyaltyTier struct {
	Tier          string   `json:"tier"`
	CustomerCount int      `json:"customer_count"`
	Customers     []string `json:"customers"`
}

type LoyaltyReport struct {
	Metric    LoyaltyMetric     `json:"metric"`
	Customers []CustomerLoyalty `json:"customers"`
	Tiers     []LoyaltyTier     `json:"tiers"`
}

// Summary is the KPI tile block shown above every analysis.
type Summary struct {
	TotalRevenue    int64 `json:"total_revenue"`
	Records         int   `json:"records"`
	UniqueCustomers int   `json:"unique_customers"`
	UniqueProducts  int   `json:"unique_products"`
}
