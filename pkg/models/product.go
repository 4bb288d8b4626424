package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Rating holds the denormalized review statistics for a product. It is
// recomputed from the full review set on every review mutation, never
// adjusted incrementally.
type Rating struct {
	Average float64 `json:"average" bson:"average" validate:"gte=0,lte=5"`
	Count   int     `json:"count" bson:"count" validate:"gte=0"`
}

// Product represents a catalog product. Stock is mutated only through the
// inventory ledger's conditional updates, never assigned from handlers.
type Product struct {
	ID          bson.ObjectID  `json:"id" bson:"_id,omitempty"`
	Name        string         `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Slug        string         `json:"slug" bson:"slug"`
	Description string         `json:"description" bson:"description" validate:"max=2000"`
	PriceCents  int64          `json:"price_cents" bson:"price_cents" validate:"required,gt=0"`
	Stock       int            `json:"stock" bson:"stock" validate:"gte=0"`
	Featured    bool           `json:"featured" bson:"featured"`
	Image       string         `json:"image" bson:"image,omitempty"`
	CategoryID  *bson.ObjectID `json:"category_id,omitempty" bson:"category_id,omitempty"`
	Rating      Rating         `json:"rating" bson:"rating"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`
}

// Category groups products for browsing.
type Category struct {
	ID    bson.ObjectID `json:"id" bson:"_id,omitempty"`
	Name  string        `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Slug  string        `json:"slug" bson:"slug"`
	Image string        `json:"image" bson:"image,omitempty"`
}

type CreateProductRequest struct {
	Name        string  `json:"name" binding:"required,min=2,max=100"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Stock       int     `json:"stock" binding:"gte=0"`
	Featured    bool    `json:"featured"`
	Image       string  `json:"image"`
	Category    string  `json:"category"`
}

func (req *CreateProductRequest) ToProduct() *Product {
	product := &Product{
		ID:          bson.NewObjectID(),
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  ToCents(req.Price),
		Stock:       req.Stock,
		Featured:    req.Featured,
		Image:       req.Image,
		Rating:      Rating{Average: 0.0, Count: 0},
	}
	product.SetTimestamps()
	return product
}

// ProductListView is the compact shape used by listings and search results.
type ProductListView struct {
	ID    bson.ObjectID `json:"id"`
	Name  string        `json:"name"`
	Slug  string        `json:"slug"`
	Image string        `json:"image,omitempty"`
	Price float64       `json:"price"`
}

// ProductDetailView adds the fields only the product page needs.
type ProductDetailView struct {
	ProductListView
	Description     string            `json:"description"`
	Stock           int               `json:"stock"`
	Rating          Rating            `json:"rating"`
	SimilarProducts []ProductListView `json:"similar_products,omitempty"`
}

func (p *Product) ToListView() ProductListView {
	return ProductListView{
		ID:    p.ID,
		Name:  p.Name,
		Slug:  p.Slug,
		Image: p.Image,
		Price: FromCents(p.PriceCents),
	}
}

func (p *Product) ToDetailView(similar []ProductListView) ProductDetailView {
	return ProductDetailView{
		ProductListView: p.ToListView(),
		Description:     p.Description,
		Stock:           p.Stock,
		Rating:          p.Rating,
		SimilarProducts: similar,
	}
}

func (p *Product) IsInStock() bool {
	return p.Stock > 0
}

func (p *Product) SetTimestamps() {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}

// ToCents converts a dollar amount to minor units.
func ToCents(dollars float64) int64 {
	return int64(dollars*100 + 0.5)
}

// FromCents converts minor units back to a dollar amount for display.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// Slugify produces a URL-safe slug from a display name. Uniqueness is
// handled by the store, which appends a counter suffix on collision.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// NextSlug returns the candidate slug for the given collision counter.
func NextSlug(slug string, counter int) string {
	if counter == 0 {
		return slug
	}
	return fmt.Sprintf("%s-%d", slug, counter)
}
