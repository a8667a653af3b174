package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/auth"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/pricing"
	"github.com/skyfly82/skybrokersystem-v2-sub003/internal/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := store.NewPool(ctx, dbURL, "seeder")
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}
	defer pool.Close()

	db := store.New(pool)

	carrierIDs := seedCarriers(ctx, db)
	zoneIDs := seedZones(ctx, db, carrierIDs)
	tableIDs := seedTables(ctx, db, carrierIDs, zoneIDs)
	serviceIDs := seedServices(ctx, db, carrierIDs)
	seedServicePrices(ctx, db, tableIDs, serviceIDs)
	customerIDs := seedCustomers(ctx, db)
	seedContracts(ctx, db, customerIDs, tableIDs)
	seedPromotions(ctx, db)

	log.Println("Seeding completed successfully!")
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}

func seedCarriers(ctx context.Context, db *store.Store) map[string]int64 {
	carriers := []pricing.Carrier{
		{Code: "INPOST", Name: "InPost", MaxWeight: dp("25"), MaxLength: dp("64"), MaxWidth: dp("41"), MaxHeight: dp("38"), ZoneCodes: []string{"PL-LOCAL", "PL"}, IsActive: true},
		{Code: "DHL", Name: "DHL Parcel", MaxWeight: dp("31.5"), MaxLength: dp("120"), MaxWidth: dp("60"), MaxHeight: dp("60"), ZoneCodes: []string{"PL", "EU", "WORLD"}, IsActive: true},
		{Code: "GLS", Name: "GLS Poland", MaxWeight: dp("40"), MaxLength: dp("200"), MaxWidth: dp("80"), MaxHeight: dp("60"), ZoneCodes: []string{"PL", "EU"}, IsActive: true},
	}

	fmt.Println("Seeding Carriers...")
	ids := make(map[string]int64)
	for _, c := range carriers {
		id, err := db.CreateCarrier(ctx, c)
		if err != nil {
			if store.IsUniqueViolation(err) {
				log.Printf("Carrier %s already exists, skipping", c.Code)
				continue
			}
			log.Printf("Failed to seed carrier %s: %v", c.Code, err)
			continue
		}
		ids[c.Code] = id
	}
	return ids
}

func seedZones(ctx context.Context, db *store.Store, carrierIDs map[string]int64) map[string]int64 {
	type zoneSeed struct {
		Carrier string
		Zone    pricing.Zone
	}
	zones := []zoneSeed{
		{"INPOST", pricing.Zone{Code: "PL-LOCAL", Name: "Poland same-city", Kind: pricing.ZoneLocal, Countries: []string{"PL"}, IsActive: true}},
		{"INPOST", pricing.Zone{Code: "PL", Name: "Poland domestic", Kind: pricing.ZoneNational, Countries: []string{"PL"}, IsActive: true}},
		{"DHL", pricing.Zone{Code: "PL", Name: "Poland domestic", Kind: pricing.ZoneNational, Countries: []string{"PL"}, IsActive: true}},
		{"DHL", pricing.Zone{Code: "EU", Name: "European Union", Kind: pricing.ZoneInternational, Countries: []string{"DE", "FR", "CZ", "SK", "NL", "BE", "IT", "ES", "AT", "LT", "LV", "EE"}, IsActive: true}},
		{"DHL", pricing.Zone{Code: "WORLD", Name: "Rest of world", Kind: pricing.ZoneInternational, IsActive: true}},
		{"GLS", pricing.Zone{Code: "PL", Name: "Poland domestic", Kind: pricing.ZoneNational, Countries: []string{"PL"}, IsActive: true}},
		{"GLS", pricing.Zone{Code: "EU", Name: "European Union", Kind: pricing.ZoneInternational, Countries: []string{"DE", "FR", "CZ", "SK", "NL", "BE"}, IsActive: true}},
	}

	fmt.Println("Seeding Zones...")
	ids := make(map[string]int64)
	for _, z := range zones {
		carrierID, ok := carrierIDs[z.Carrier]
		if !ok {
			continue
		}
		z.Zone.CarrierID = carrierID
		id, err := db.CreateZone(ctx, z.Zone)
		if err != nil {
			if store.IsUniqueViolation(err) {
				log.Printf("Zone %s/%s already exists, skipping", z.Carrier, z.Zone.Code)
				continue
			}
			log.Printf("Failed to seed zone %s/%s: %v", z.Carrier, z.Zone.Code, err)
			continue
		}
		ids[z.Carrier+"/"+z.Zone.Code] = id
	}
	return ids
}

func seedTables(ctx context.Context, db *store.Store, carrierIDs, zoneIDs map[string]int64) map[string]int64 {
	type tableSeed struct {
		Carrier     string
		Zone        string
		ServiceType string
		Model       pricing.Model
		BasePrice   string
		Divisor     string
		Rules       []pricing.Rule
	}
	tables := []tableSeed{
		{
			Carrier: "INPOST", Zone: "PL", ServiceType: "standard", Model: pricing.ModelWeight, BasePrice: "0",
			Rules: []pricing.Rule{
				{WeightFrom: d("0"), WeightTo: dp("1"), Method: pricing.CalcFixed, Price: d("12.99"), SortOrder: 1},
				{WeightFrom: d("1"), WeightTo: dp("5"), Method: pricing.CalcFixed, Price: d("15.99"), SortOrder: 2},
				{WeightFrom: d("5"), WeightTo: dp("15"), Method: pricing.CalcFixed, Price: d("19.99"), SortOrder: 3},
				{WeightFrom: d("15"), WeightTo: dp("25"), Method: pricing.CalcFixed, Price: d("25.99"), SortOrder: 4},
			},
		},
		{
			Carrier: "DHL", Zone: "PL", ServiceType: "standard", Model: pricing.ModelHybrid, BasePrice: "0", Divisor: "5000",
			Rules: []pricing.Rule{
				{WeightFrom: d("0"), WeightTo: dp("2"), Method: pricing.CalcFixed, Price: d("16.50"), SortOrder: 1},
				{WeightFrom: d("2"), WeightTo: dp("10"), Method: pricing.CalcPerKg, Price: d("14.00"), PricePerKg: d("1.80"), SortOrder: 2},
				{WeightFrom: d("10"), WeightTo: dp("31.5"), Method: pricing.CalcPerKgStep, Price: d("28.00"), PricePerKg: d("1.20"), WeightStep: d("0.5"), SortOrder: 3},
			},
		},
		{
			Carrier: "DHL", Zone: "EU", ServiceType: "standard", Model: pricing.ModelHybrid, BasePrice: "0", Divisor: "5000",
			Rules: []pricing.Rule{
				{WeightFrom: d("0"), WeightTo: dp("5"), Method: pricing.CalcFixed, Price: d("59.00"), SortOrder: 1},
				{WeightFrom: d("5"), WeightTo: dp("31.5"), Method: pricing.CalcPerKg, Price: d("49.00"), PricePerKg: d("4.50"), MinPrice: dp("59.00"), SortOrder: 2},
			},
		},
		{
			Carrier: "DHL", Zone: "PL", ServiceType: "express", Model: pricing.ModelHybrid, BasePrice: "0", Divisor: "5000",
			Rules: []pricing.Rule{
				{WeightFrom: d("0"), WeightTo: dp("31.5"), Method: pricing.CalcPerKg, Price: d("39.00"), PricePerKg: d("2.50"), SortOrder: 1},
			},
		},
		{
			Carrier: "GLS", Zone: "PL", ServiceType: "standard", Model: pricing.ModelWeight, BasePrice: "0",
			Rules: []pricing.Rule{
				{WeightFrom: d("0"), WeightTo: dp("3"), Method: pricing.CalcFixed, Price: d("14.50"), SortOrder: 1},
				{WeightFrom: d("3"), WeightTo: dp("10"), Method: pricing.CalcFixed, Price: d("18.50"), SortOrder: 2},
				{WeightFrom: d("10"), WeightTo: dp("40"), Method: pricing.CalcPerKg, Price: d("18.50"), PricePerKg: d("0.95"), SortOrder: 3},
			},
		},
	}

	fmt.Println("Seeding Pricing Tables...")
	effectiveFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make(map[string]int64)
	for _, t := range tables {
		carrierID, ok := carrierIDs[t.Carrier]
		if !ok {
			continue
		}
		zoneID, ok := zoneIDs[t.Carrier+"/"+t.Zone]
		if !ok {
			continue
		}
		version, err := db.NextTableVersion(ctx, carrierID, zoneID, t.ServiceType)
		if err != nil {
			log.Printf("Failed to resolve version for %s/%s/%s: %v", t.Carrier, t.Zone, t.ServiceType, err)
			continue
		}
		if version > 1 {
			log.Printf("Table %s/%s/%s already seeded, skipping", t.Carrier, t.Zone, t.ServiceType)
			continue
		}
		table := pricing.Table{
			CarrierID:     carrierID,
			ZoneID:        zoneID,
			ServiceType:   t.ServiceType,
			Model:         t.Model,
			BasePrice:     d(t.BasePrice),
			Currency:      "PLN",
			TaxRate:       dp("23"),
			EffectiveFrom: effectiveFrom,
			Version:       version,
			IsActive:      true,
		}
		if t.Divisor != "" {
			table.VolumetricDivisor = dp(t.Divisor)
		}
		tableID, err := db.CreateTable(ctx, table)
		if err != nil {
			log.Printf("Failed to seed table %s/%s/%s: %v", t.Carrier, t.Zone, t.ServiceType, err)
			continue
		}
		ids[t.Carrier+"/"+t.Zone+"/"+t.ServiceType] = tableID

		for _, rule := range t.Rules {
			rule.TableID = tableID
			if _, err := db.CreateRule(ctx, rule); err != nil {
				log.Printf("Failed to seed rule for table %d: %v", tableID, err)
			}
		}
	}
	return ids
}

func seedServices(ctx context.Context, db *store.Store, carrierIDs map[string]int64) map[string]int64 {
	type serviceSeed struct {
		Carrier string
		Svc     pricing.Service
	}
	services := []serviceSeed{
		{"INPOST", pricing.Service{Code: "COD", Name: "Cash on delivery", ServiceType: "payment", PricingType: pricing.ServicePercentage, DefaultPrice: d("5.00"), PercentageRate: dp("1.5"), MinPrice: dp("5.00"), IsActive: true}},
		{"INPOST", pricing.Service{Code: "INSURANCE", Name: "Parcel insurance", ServiceType: "cover", PricingType: pricing.ServicePercentage, DefaultPrice: d("3.00"), PercentageRate: dp("0.8"), MinPrice: dp("3.00"), MaxPrice: dp("120.00"), IsActive: true}},
		{"DHL", pricing.Service{Code: "COD", Name: "Cash on delivery", ServiceType: "payment", PricingType: pricing.ServicePercentage, DefaultPrice: d("6.50"), PercentageRate: dp("1.8"), MinPrice: dp("6.50"), IsActive: true}},
		{"DHL", pricing.Service{Code: "SATURDAY", Name: "Saturday delivery", ServiceType: "delivery", PricingType: pricing.ServiceFixed, DefaultPrice: d("25.00"), SupportedZones: []string{"PL"}, IsActive: true}},
		{"DHL", pricing.Service{Code: "FRAGILE", Name: "Fragile handling", ServiceType: "handling", PricingType: pricing.ServicePerPackage, DefaultPrice: d("8.00"), IsActive: true}},
		{"GLS", pricing.Service{Code: "COD", Name: "Cash on delivery", ServiceType: "payment", PricingType: pricing.ServicePercentage, DefaultPrice: d("6.00"), PercentageRate: dp("1.6"), MinPrice: dp("6.00"), IsActive: true}},
	}

	fmt.Println("Seeding Additional Services...")
	ids := make(map[string]int64)
	for _, s := range services {
		carrierID, ok := carrierIDs[s.Carrier]
		if !ok {
			continue
		}
		s.Svc.CarrierID = carrierID
		id, err := db.CreateService(ctx, s.Svc)
		if err != nil {
			if store.IsUniqueViolation(err) {
				log.Printf("Service %s/%s already exists, skipping", s.Carrier, s.Svc.Code)
				continue
			}
			log.Printf("Failed to seed service %s/%s: %v", s.Carrier, s.Svc.Code, err)
			continue
		}
		ids[s.Carrier+"/"+s.Svc.Code] = id
	}
	return ids
}

func seedServicePrices(ctx context.Context, db *store.Store, tableIDs, serviceIDs map[string]int64) {
	type priceSeed struct {
		Table   string
		Service string
		Price   pricing.ServicePrice
	}
	prices := []priceSeed{
		{"DHL/PL/standard", "DHL/SATURDAY", pricing.ServicePrice{Price: dp("22.00")}},
		{"DHL/PL/standard", "DHL/COD", pricing.ServicePrice{PercentageRate: dp("1.5"), MinPrice: dp("6.00")}},
		{"INPOST/PL/standard", "INPOST/COD", pricing.ServicePrice{PercentageRate: dp("1.2"), MinPrice: dp("4.50")}},
	}

	fmt.Println("Seeding Service Price Overrides...")
	for _, p := range prices {
		tableID, ok1 := tableIDs[p.Table]
		serviceID, ok2 := serviceIDs[p.Service]
		if !ok1 || !ok2 {
			continue
		}
		p.Price.TableID = tableID
		p.Price.ServiceID = serviceID
		if _, err := db.CreateServicePrice(ctx, p.Price); err != nil {
			log.Printf("Failed to seed service price %s on %s: %v", p.Service, p.Table, err)
		}
	}
}

func seedCustomers(ctx context.Context, db *store.Store) []uuid.UUID {
	customers := []store.Customer{
		{Name: "Sklep Modna Polka", Email: "ops@modnapolka.pl", Groups: []string{"retail"}, IsActive: true},
		{Name: "Hurtownia Elektro-Max", Email: "logistics@elektromax.pl", Groups: []string{"wholesale", "vip"}, IsActive: true},
	}

	fmt.Println("Seeding Customers...")
	var ids []uuid.UUID
	for _, c := range customers {
		c.ID = uuid.New()
		rawKey, hash, err := auth.NewKey(c.ID)
		if err != nil {
			log.Printf("Failed to mint API key for %s: %v", c.Email, err)
			continue
		}
		c.APIKeyHash = hash
		if err := db.CreateCustomer(ctx, c); err != nil {
			if store.IsUniqueViolation(err) {
				log.Printf("Customer %s already exists, skipping", c.Email)
				continue
			}
			log.Printf("Failed to seed customer %s: %v", c.Email, err)
			continue
		}
		ids = append(ids, c.ID)
		// The raw key is only recoverable here; hand it to the customer now.
		log.Printf("Customer %s API key: %s", c.Email, rawKey)
	}
	return ids
}

func seedContracts(ctx context.Context, db *store.Store, customerIDs []uuid.UUID, tableIDs map[string]int64) {
	if len(customerIDs) < 2 {
		log.Println("Skipping contract seed: customers missing")
		return
	}
	tableID, ok := tableIDs["DHL/PL/standard"]
	if !ok {
		log.Println("Skipping contract seed: DHL domestic table missing")
		return
	}

	fmt.Println("Seeding Customer Pricing...")
	effectiveFrom := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	contracts := []pricing.Contract{
		{
			CustomerID:          customerIDs[0],
			TableID:             tableID,
			DiscountType:        pricing.DiscountPercentage,
			BaseDiscountPercent: d("8"),
			EffectiveFrom:       effectiveFrom,
			IsActive:            true,
		},
		{
			CustomerID:   customerIDs[1],
			TableID:      tableID,
			DiscountType: pricing.DiscountVolume,
			VolumeTiers: []pricing.VolumeTier{
				{MinCount: 50, DiscountPercent: d("5")},
				{MinCount: 200, DiscountPercent: d("10")},
				{MinCount: 500, DiscountPercent: d("15")},
			},
			VolumePeriod:  pricing.PeriodMonthly,
			EffectiveFrom: effectiveFrom,
			IsActive:      true,
		},
	}
	for _, c := range contracts {
		if _, err := db.CreateContract(ctx, c); err != nil {
			if store.IsUniqueViolation(err) {
				log.Printf("Contract for %s already exists, skipping", c.CustomerID)
				continue
			}
			log.Printf("Failed to seed contract for %s: %v", c.CustomerID, err)
		}
	}
}

func seedPromotions(ctx context.Context, db *store.Store) {
	fmt.Println("Seeding Promotions...")
	code := "WIOSNA26"
	limit := int64(1000)
	promos := []pricing.Promotion{
		{
			Name:          "Spring shipping sale",
			PromoCode:     &code,
			DiscountType:  pricing.PromoPercentage,
			DiscountValue: d("15"),
			TargetType:    pricing.TargetAll,
			ValidFrom:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			ValidUntil:    timePtr(time.Date(2026, 5, 31, 23, 59, 59, 0, time.UTC)),
			UsageLimit:    &limit,
			LimitType:     pricing.LimitTotal,
			Priority:      10,
			IsStackable:   false,
			IsActive:      true,
		},
		{
			Name:              "Wholesale free shipping",
			DiscountType:      pricing.PromoFreeShipping,
			DiscountValue:     d("0"),
			MinOrderValue:     dp("500"),
			TargetType:        pricing.TargetCustomerGroup,
			TargetValues:      []string{"wholesale"},
			ValidFrom:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			LimitType:         pricing.LimitPerCustomer,
			Priority:          5,
			IsStackable:       true,
			IsActive:          true,
			MaxDiscountAmount: dp("60"),
		},
	}
	for _, p := range promos {
		if _, err := db.CreatePromotion(ctx, p, nil); err != nil {
			if store.IsUniqueViolation(err) {
				log.Printf("Promotion %q already exists, skipping", p.Name)
				continue
			}
			log.Printf("Failed to seed promotion %q: %v", p.Name, err)
		}
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
