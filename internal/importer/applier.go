package importer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
	"github.com/Narimm/OpenVPMS-sub018/internal/pricing"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
)

// ChangeApplier persists reconciled change sets. Each product's changes are
// applied in their own transaction together with their audit log rows, so a
// failure on one product leaves every other product's prices intact.
type ChangeApplier struct {
	products repository.ProductRepository
	prices   repository.PriceRepository
	logs     repository.ChangeLogRepository
	groups   repository.PricingGroupRepository
}

func NewChangeApplier(
	products repository.ProductRepository,
	prices repository.PriceRepository,
	logs repository.ChangeLogRepository,
	groups repository.PricingGroupRepository,
) *ChangeApplier {
	return &ChangeApplier{products: products, prices: prices, logs: logs, groups: groups}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// Apply writes one product's change set: creations insert new prices, records
// with an id overwrite the stored price (closures included). The markup stored
// with each price is recomputed from cost, price and the product's tax rate.
func (a *ChangeApplier) Apply(ctx context.Context, batchID *uuid.UUID, set *pricing.ProductPriceSet) error {
	product := set.Ref
	if product == nil {
		return fmt.Errorf("apply changes: product %s not resolved", set.ProductID)
	}

	// Group codes resolve outside the transaction; prices only reference
	// groups already synced from the classification service.
	groupsByCode, err := a.resolveGroups(ctx, set)
	if err != nil {
		return err
	}

	return runTx(ctx, a.products.DB(), func(tx *gorm.DB) error {
		for _, rec := range append(set.FixedPrices, set.UnitPrices...) {
			if err := a.applyRecord(tx, batchID, product, set, rec, groupsByCode); err != nil {
				return err
			}
		}

		if set.PrintedName != printedName(product) {
			product.PrintedName = strPtr(set.PrintedName)
			if err := a.products.UpdateTx(tx, product); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *ChangeApplier) applyRecord(
	tx *gorm.DB,
	batchID *uuid.UUID,
	product *model.Product,
	set *pricing.ProductPriceSet,
	rec *pricing.PriceRecord,
	groupsByCode map[string]model.PricingGroup,
) error {
	markup := pricing.Markup(rec.Price, rec.Cost, set.TaxRate)
	action := model.ChangeUpdate

	var price *model.ProductPrice
	if rec.ID == uuid.Nil {
		action = model.ChangeCreate
		price = &model.ProductPrice{
			ProductID:   product.ID,
			Kind:        string(rec.Kind),
			Price:       rec.Price,
			Cost:        rec.Cost,
			Markup:      markup,
			MaxDiscount: rec.MaxDiscount,
			FromDate:    *rec.From,
			ToDate:      rec.To,
			IsDefault:   rec.Default,
		}
		for _, code := range rec.Groups {
			if g, ok := groupsByCode[code]; ok {
				price.Groups = append(price.Groups, g)
			} else {
				log.Warn().Str("code", code).Int("line", rec.Line).Msg("unknown pricing group code ignored")
			}
		}
		if err := a.prices.CreateTx(tx, price); err != nil {
			return err
		}
	} else {
		stored, err := a.prices.FindTx(tx, rec.ID)
		if err != nil {
			return err
		}
		if isClosure(rec, stored) {
			action = model.ChangeClose
		}
		stored.Price = rec.Price
		stored.Cost = rec.Cost
		stored.Markup = markup
		stored.MaxDiscount = rec.MaxDiscount
		stored.FromDate = *rec.From
		stored.ToDate = rec.To
		stored.IsDefault = rec.Default
		// group membership is not part of reconciliation and is left untouched
		if err := a.prices.UpdateTx(tx, stored); err != nil {
			return err
		}
		price = stored
	}

	return a.logs.CreateTx(tx, &model.PriceChangeLog{
		ProductID:  product.ID,
		PriceID:    price.ID,
		BatchID:    batchID,
		Kind:       string(rec.Kind),
		Action:     action,
		PriceAfter: rec.Price,
		CostAfter:  rec.Cost,
		FromDate:   *rec.From,
		ToDate:     rec.To,
		Line:       rec.Line,
	})
}

// isClosure distinguishes a rollover closure from an ordinary update: the
// stored price was open-ended, the record ends it and leaves the values alone.
func isClosure(rec *pricing.PriceRecord, stored *model.ProductPrice) bool {
	return stored.ToDate == nil && rec.To != nil &&
		rec.Price.Equal(stored.Price) && rec.Cost.Equal(stored.Cost)
}

func (a *ChangeApplier) resolveGroups(ctx context.Context, set *pricing.ProductPriceSet) (map[string]model.PricingGroup, error) {
	var codes []string
	seen := make(map[string]bool)
	for _, rec := range append(set.FixedPrices, set.UnitPrices...) {
		for _, code := range rec.Groups {
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}
	if len(codes) == 0 {
		return nil, nil
	}

	groups, err := a.groups.FindByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}
	byCode := make(map[string]model.PricingGroup, len(groups))
	for _, g := range groups {
		byCode[g.Code] = g
	}
	return byCode, nil
}

func printedName(p *model.Product) string {
	if p.PrintedName == nil {
		return ""
	}
	return *p.PrintedName
}

func strPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
