// Command generate writes a seeded sample order feed so the pipeline can be
// exercised end to end without a real dataset.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"orders-pipeline/pkg/logger"
)

var products = map[string][]string{
	"Electronics": {"Laptop", "Smartphone", "Tablet", "Monitor", "Headphones", "Keyboard", "Mouse", "Webcam"},
	"Clothing":    {"T-Shirt", "Jeans", "Jacket", "Sneakers", "Dress", "Sweater", "Shorts", "Hat"},
	"Furniture":   {"Chair", "Desk", "Table", "Sofa", "Bed", "Bookshelf", "Cabinet", "Lamp"},
	"Accessories": {"Watch", "Bag", "Wallet", "Sunglasses", "Belt", "Scarf", "Jewelry", "Umbrella"},
	"Sports":      {"Football", "Basketball", "Tennis Racket", "Yoga Mat", "Dumbbells", "Running Shoes", "Bicycle", "Swimming Goggles"},
}

var priceRanges = map[string][2]float64{
	"Electronics": {50, 2000},
	"Clothing":    {15, 200},
	"Furniture":   {30, 1500},
	"Accessories": {10, 300},
	"Sports":      {20, 500},
}

// statuses mixes canonical values with the raw synonyms the cleaning stage
// must map, roughly weighted like real traffic.
var statuses = []struct {
	value  string
	weight float64
}{
	{"completed", 0.55},
	{"complete", 0.08},
	{"done", 0.07},
	{"pending", 0.10},
	{"processing", 0.05},
	{"cancelled", 0.05},
	{"canceled", 0.05},
	{"returned", 0.03},
	{"refunded", 0.02},
}

func pickStatus(rng *rand.Rand) string {
	r := rng.Float64()
	acc := 0.0
	for _, s := range statuses {
		acc += s.weight
		if r < acc {
			return s.value
		}
	}
	return statuses[len(statuses)-1].value
}

func main() {
	rows := flag.Int("rows", 100000, "number of rows to generate")
	out := flag.String("out", "data/raw_data.csv", "output file")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	lg := logger.New("generate")
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		lg.Fatalf("create output dir: %v", err)
	}
	file, err := os.Create(*out)
	if err != nil {
		lg.Fatalf("create %s: %v", *out, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{"user_id", "order_id", "product_id", "product_name", "category", "price", "quantity", "order_date", "status"}
	if err := w.Write(header); err != nil {
		lg.Fatalf("write header: %v", err)
	}

	categoryNames := make([]string, 0, len(products))
	for name := range products {
		categoryNames = append(categoryNames, name)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dirtyEvery := 200 // ~0.5% of rows get an intentional quality issue

	for i := 0; i < *rows; i++ {
		category := categoryNames[rng.Intn(len(categoryNames))]
		name := products[category][rng.Intn(len(products[category]))]
		bounds := priceRanges[category]
		price := bounds[0] + rng.Float64()*(bounds[1]-bounds[0])
		date := start.AddDate(0, 0, rng.Intn(365)).Format("2006-01-02")

		// intentional quality issues for the cleaning stage to handle
		if i%dirtyEvery == dirtyEvery-1 {
			switch rng.Intn(3) {
			case 0:
				name = ""
			case 1:
				category = ""
			default:
				date = "not-a-date"
			}
		}

		record := []string{
			strconv.Itoa(rng.Intn(50000) + 1),
			fmt.Sprintf("ORD-%08d", i),
			fmt.Sprintf("PROD-%05d", rng.Intn(5000)+1),
			name,
			category,
			fmt.Sprintf("%.2f", price),
			strconv.Itoa(rng.Intn(9) + 1),
			date,
			pickStatus(rng),
		}
		if err := w.Write(record); err != nil {
			lg.Fatalf("write row %d: %v", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		lg.Fatalf("flush: %v", err)
	}
	lg.Printf("wrote %d rows to %s", *rows, *out)
}
