package pricing

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Narimm/OpenVPMS-sub018/internal/model"
)

// ProductResolver looks up catalogue products referenced by an import
// document. A nil product with a nil error means the product does not exist.
type ProductResolver interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
}

// BatchResult separates the products that need changes from the products whose
// rows were rejected. Products with no changes at all appear in neither list.
type BatchResult struct {
	Changed []*ProductPriceSet
	Errors  []*ProductPriceSet
}

// ErrorCount returns the number of products rejected by the batch.
func (r *BatchResult) ErrorCount() int {
	return len(r.Errors)
}

// BatchReconciler resolves each imported product and runs the reconciler over
// it. Data errors are collected per product so one bad row never blocks the
// rest of the file; infrastructure errors abort the batch.
type BatchReconciler struct {
	resolver   ProductResolver
	reconciler *Reconciler
}

func NewBatchReconciler(resolver ProductResolver, reconciler *Reconciler) *BatchReconciler {
	return &BatchReconciler{resolver: resolver, reconciler: reconciler}
}

// ReconcileAll processes every set in document order. Each rejected set comes
// back with its Err field populated; each changed set is the reconciler's
// change set with Ref pointing at the resolved product.
func (b *BatchReconciler) ReconcileAll(ctx context.Context, sets []*ProductPriceSet) (*BatchResult, error) {
	result := &BatchResult{}
	for _, set := range sets {
		product, ierr, err := b.resolve(ctx, set)
		if err != nil {
			return nil, err
		}
		if ierr == nil {
			set.Ref = product
			var changes *ProductPriceSet
			changes, err = b.reconciler.Reconcile(ctx, product, set)
			if err != nil {
				if ierr = AsImportError(err); ierr == nil {
					return nil, err
				}
			} else if changes != nil {
				result.Changed = append(result.Changed, changes)
			}
		}
		if ierr != nil {
			set.Err = ierr
			result.Errors = append(result.Errors, set)
			log.Debug().
				Str("product_id", set.ProductID).
				Int("line", ierr.Line).
				Str("code", string(ierr.Code)).
				Msg("import row rejected")
		}
	}
	return result, nil
}

// resolve finds the catalogue product for a set and verifies the imported name
// matches, the guard against price rows pasted onto the wrong product id.
func (b *BatchReconciler) resolve(ctx context.Context, set *ProductPriceSet) (*model.Product, *ImportError, error) {
	id, err := uuid.Parse(set.ProductID)
	if err != nil {
		return nil, newError(NotFound, set.Line), nil
	}
	product, err := b.resolver.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if product == nil {
		return nil, newError(NotFound, set.Line), nil
	}
	if !strings.EqualFold(product.Name, set.Name) {
		return nil, newError(InvalidName, set.Line), nil
	}
	return product, nil, nil
}
