// Package quota provides subscription commerce for a job marketplace.
//
// Quota is designed as a library. Import it into the marketplace's admin and
// employer services; it prices feature bundles, keeps each employer's
// balances and debits them when a metered resource is used. It provides:
//
//   - Per-country pricing from admin-edited reference rates and tax rates
//   - Package composition with feature, package and period discounts
//   - Billing plan creation through a pluggable payment gateway
//   - Balances shared by a master account and its slaves
//   - Exactly-once charging of candidate profile views
//   - Promo codes unique per code and country
//   - A write-once audit trail of every admin edit
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/quota"
//	    "github.com/xraph/quota/gateway"
//	    "github.com/xraph/quota/store/memory"
//	)
//
//	eng := quota.New(memory.New(),
//	    quota.WithGateway(gateway.NewHTTPClient(keyID, keySecret)),
//	)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Tiers are reference rates: BasePrice buys Count units of one feature in
// one country. Packages are priced from them:
//
//	pkg, err := eng.SavePackage(ctx, &bundle.ComposeRequest{
//	    Name:            "Starter",
//	    Country:         "IN",
//	    AdminID:         adminID,
//	    MonthlyDiscount: 10,
//	    Features: map[feature.Key]bundle.LineRequest{
//	        feature.Jobs: {IsIncluded: true, MonthlyCount: 200, YearlyCount: 2400},
//	    },
//	})
//
// Subscriptions hold the balances a package grants:
//
//	sub, err := eng.ActivateSubscription(ctx, masterID, pkg.ID, types.PeriodMonthly)
//
// Views are charged once per candidate per charge window, across every
// account of the employer's group:
//
//	res, err := eng.ChargeViews(ctx, employerID, candidateIDs, sub.ID)
//	if errors.Is(err, quota.ErrInsufficientBalance) {
//	    // nothing was charged
//	}
//
// # Money
//
// Prices are authored and composed in major units rounded to two decimals.
// The amount sent to the payment gateway is converted to the currency's
// minor unit with types.FromMajor.
//
// # TypeID
//
// Stored entities use TypeID identifiers:
//
//	pkg_01h2xcejqtf2nbrexx3vqjhp41    // Package ID
//	sub_01h2xcejqtf2nbrexx3vqjhp41    // Subscription ID
//	promo_01h455vb4pex5vsknk084sn02q  // Promo ID
//
// Account, employer and candidate ids belong to the surrounding platform
// and are plain strings.
package quota
