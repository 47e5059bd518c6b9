package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/farmcart/internal/catalog"
	"github.com/example/farmcart/internal/datamodels/product"
	"github.com/example/farmcart/internal/feed"
)

// ProductInput 后台新增/编辑商品的请求体
type ProductInput struct {
	Title       string          `json:"title" validate:"required,max=128"`
	Category    string          `json:"category" validate:"required,max=64"`
	Price       decimal.Decimal `json:"price"`
	ActualPrice decimal.Decimal `json:"actual_price"`
	Weight      decimal.Decimal `json:"weight"`
	Description string          `json:"description" validate:"max=1024"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url,max=512"`
}

func (in *ProductInput) check() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if err := checkStruct(in); err != nil {
		return err
	}
	var bad []string
	if in.Price.IsNegative() {
		bad = append(bad, "price")
	}
	if in.ActualPrice.IsNegative() {
		bad = append(bad, "actual_price")
	}
	if in.Weight.IsNegative() {
		bad = append(bad, "weight")
	}
	if len(bad) > 0 {
		return invalid("must not be negative", bad...)
	}
	return nil
}

func (in *ProductInput) apply(p *product.Product) {
	p.Title = in.Title
	p.Category = in.Category
	p.Price = in.Price.Round(2)
	p.ActualPrice = in.ActualPrice.Round(2)
	p.Weight = in.Weight
	p.Description = in.Description
	p.ImageURL = in.ImageURL
}

// ProductService 商品查询（店面）与维护（后台）
type ProductService struct {
	repo product.Repository
	bus  feed.Bus
}

func NewProductService(repo product.Repository, bus feed.Bus) *ProductService {
	return &ProductService{repo: repo, bus: bus}
}

func (s *ProductService) all(ctx context.Context) ([]*product.Product, error) {
	list, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fromRepo(err)
	}
	return list, nil
}

// List 按条件筛选排序
func (s *ProductService) List(ctx context.Context, q catalog.Query) ([]*product.Product, error) {
	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Apply(list, q), nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*product.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	return p, nil
}

// Sections 首页分区
func (s *ProductService) Sections(ctx context.Context) ([]catalog.Section, error) {
	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Sections(list), nil
}

func (s *ProductService) Categories(ctx context.Context) ([]string, error) {
	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Categories(list), nil
}

func (s *ProductService) Suggestions(ctx context.Context, term string) ([]*product.Product, error) {
	list, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Suggestions(list, term, catalog.MaxSuggestions), nil
}

func (s *ProductService) Create(ctx context.Context, in ProductInput, actor string) (*product.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	p := &product.Product{ID: uuid.NewString()}
	in.apply(p)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fromRepo(err)
	}
	s.publish(ctx, feed.OpCreated, p.ID, actor)
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id string, in ProductInput, actor string) (*product.Product, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fromRepo(err)
	}
	in.apply(p)
	p.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fromRepo(err)
	}
	s.publish(ctx, feed.OpUpdated, p.ID, actor)
	return p, nil
}

func (s *ProductService) Delete(ctx context.Context, id, actor string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fromRepo(err)
	}
	s.publish(ctx, feed.OpDeleted, id, actor)
	return nil
}

// publish 通知失败只记录，不影响已完成的写操作
func (s *ProductService) publish(ctx context.Context, op feed.Op, id, actor string) {
	publish(ctx, s.bus, feed.Event{Collection: feed.CollectionProducts, Op: op, ID: id, Actor: actor})
}

func publish(ctx context.Context, bus feed.Bus, e feed.Event) {
	if bus == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if err := bus.Publish(ctx, e); err != nil {
		GetMonitor().RecordMQError()
		zap.L().Warn("publish change event failed",
			zap.String("collection", e.Collection), zap.String("op", string(e.Op)), zap.String("id", e.ID), zap.Error(err))
	}
}
