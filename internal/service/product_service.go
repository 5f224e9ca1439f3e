package service

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/Narimm/OpenVPMS-sub018/internal/dto"
	"github.com/Narimm/OpenVPMS-sub018/internal/model"
	"github.com/Narimm/OpenVPMS-sub018/internal/repository"
)

var ErrProductNotFound = errors.New("product not found")

type ProductService interface {
	List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error)
	// Get returns the product with all of its prices, including prices
	// inherited from linked templates.
	Get(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	History(ctx context.Context, id uuid.UUID, page, limit int) (*dto.PriceChangeListResponse, error)
}

type productService struct {
	products repository.ProductRepository
	prices   repository.PriceRepository
	logs     repository.ChangeLogRepository
}

func NewProductService(
	products repository.ProductRepository,
	prices repository.PriceRepository,
	logs repository.ChangeLogRepository,
) ProductService {
	return &productService{products: products, prices: prices, logs: logs}
}

func (s *productService) List(ctx context.Context, filter dto.ProductFilter) (*dto.ProductListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	data := make([]dto.ProductResponse, len(products))
	for i := range products {
		data[i] = productResponse(&products[i], nil)
	}

	return &dto.ProductListResponse{
		Data:       data,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	}, nil
}

func (s *productService) Get(ctx context.Context, id uuid.UUID) (*dto.ProductResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	rows, err := s.prices.ListForProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	// Linked template prices appear after the product's own, also read-only
	// from the caller's point of view.
	templateIDs, err := s.products.TemplatesFor(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, tid := range templateIDs {
		linked, err := s.prices.ListForProduct(ctx, tid)
		if err != nil {
			return nil, err
		}
		rows = append(rows, linked...)
	}

	resp := productResponse(product, rows)
	return &resp, nil
}

func (s *productService) Deactivate(ctx context.Context, id uuid.UUID) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if product == nil {
		return ErrProductNotFound
	}
	return s.products.Deactivate(ctx, id)
}

func (s *productService) History(ctx context.Context, id uuid.UUID, page, limit int) (*dto.PriceChangeListResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	rows, total, err := s.logs.ListByProduct(ctx, id, page, limit)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 50
	}

	data := make([]dto.PriceChangeResponse, len(rows))
	for i := range rows {
		data[i] = changeResponse(&rows[i])
	}

	return &dto.PriceChangeListResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func productResponse(p *model.Product, prices []model.ProductPrice) dto.ProductResponse {
	resp := dto.ProductResponse{
		ID:          p.ID.String(),
		Name:        p.Name,
		PrintedName: p.PrintedName,
		TaxRate:     p.TaxRate,
		Template:    p.Template,
		Active:      p.Active,
	}
	for i := range prices {
		resp.Prices = append(resp.Prices, priceResponse(&prices[i]))
	}
	return resp
}

func priceResponse(p *model.ProductPrice) dto.PriceResponse {
	groups := make([]string, 0, len(p.Groups))
	for _, g := range p.Groups {
		groups = append(groups, g.Code)
	}
	return dto.PriceResponse{
		ID:          p.ID.String(),
		Kind:        p.Kind,
		Price:       p.Price,
		Cost:        p.Cost,
		Markup:      p.Markup,
		MaxDiscount: p.MaxDiscount,
		FromDate:    p.FromDate,
		ToDate:      p.ToDate,
		IsDefault:   p.IsDefault,
		Groups:      groups,
	}
}

func changeResponse(c *model.PriceChangeLog) dto.PriceChangeResponse {
	var batchID *string
	if c.BatchID != nil {
		s := c.BatchID.String()
		batchID = &s
	}
	return dto.PriceChangeResponse{
		ID:         c.ID.String(),
		PriceID:    c.PriceID.String(),
		BatchID:    batchID,
		Kind:       c.Kind,
		Action:     c.Action,
		PriceAfter: c.PriceAfter,
		CostAfter:  c.CostAfter,
		FromDate:   c.FromDate,
		ToDate:     c.ToDate,
		Line:       c.Line,
		CreatedAt:  c.CreatedAt,
	}
}
