package db

import (
	"github.com/atharvakonge/market-game/internal/models"
	"github.com/shopspring/decimal"
)

func product(id models.ProductID, name string, price int64, availability int) models.Product {
	return models.Product{ID: id, Name: name, Price: decimal.NewFromInt(price), Availability: availability}
}

// Catalog is the fixed set of products seeded at startup.
var Catalog = []models.Product{
	product(1, "Gold", 1500, 1000),
	product(2, "Silver", 25, 5000),
	product(3, "Platinum", 900, 500),
	product(4, "Palladium", 2300, 300),
	product(5, "Oil", 70, 10000),
	product(6, "Copper", 4, 8000),
}
