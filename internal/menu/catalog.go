package menu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"ms-pos/internal/apperr"
	"ms-pos/internal/logger"
	"ms-pos/internal/models"
)

type DBLayer interface {
	CreateItem(ctx context.Context, item *models.MenuItem) error
	GetItem(ctx context.Context, id string) (*models.MenuItem, error)
	GetItems(ctx context.Context, ids []string) ([]models.MenuItem, error)
	ListItems(ctx context.Context, onlyAvailable bool) ([]models.MenuItem, error)
	UpdateItem(ctx context.Context, item *models.MenuItem) (bool, error)
}

// Catalog is the menu lookup used when pricing order lines.
type Catalog struct {
	DB     DBLayer
	Logger *logger.Logger
	Now    func() time.Time
}

func NewCatalog(db DBLayer, log *logger.Logger) *Catalog {
	return &Catalog{DB: db, Logger: log, Now: time.Now}
}

type ItemInput struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Available   *bool   `json:"available"`
	Description string  `json:"description"`
}

func (in ItemInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.Validation("item name is required")
	}
	if in.Price < 0 {
		return apperr.Validation("item price must not be negative")
	}
	return nil
}

func (c *Catalog) Create(ctx context.Context, in ItemInput) (*models.MenuItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := c.Now().UTC()
	item := &models.MenuItem{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Category:    in.Category,
		Available:   in.Available == nil || *in.Available,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.DB.CreateItem(ctx, item); err != nil {
		return nil, apperr.Internal(err, "failed to create menu item")
	}
	c.Logger.Info("MENU", fmt.Sprintf("Created item %s (%s) at %.2f", item.ID, item.Name, item.Price))
	return item, nil
}

func (c *Catalog) Update(ctx context.Context, id string, in ItemInput) (*models.MenuItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	item, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Name = strings.TrimSpace(in.Name)
	item.Price = in.Price
	item.Category = in.Category
	item.Description = in.Description
	if in.Available != nil {
		item.Available = *in.Available
	}
	item.UpdatedAt = c.Now().UTC()

	ok, err := c.DB.UpdateItem(ctx, item)
	if err != nil {
		return nil, apperr.Internal(err, "failed to update menu item")
	}
	if !ok {
		return nil, apperr.NotFound("menu item %s not found", id)
	}
	return item, nil
}

func (c *Catalog) Get(ctx context.Context, id string) (*models.MenuItem, error) {
	item, err := c.DB.GetItem(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load menu item")
	}
	if item == nil {
		return nil, apperr.NotFound("menu item %s not found", id)
	}
	return item, nil
}

func (c *Catalog) List(ctx context.Context, onlyAvailable bool) ([]models.MenuItem, error) {
	items, err := c.DB.ListItems(ctx, onlyAvailable)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list menu items")
	}
	return items, nil
}

// Lookup returns the requested items keyed by id. Unknown and unavailable
// items are a validation failure naming the first offender.
func (c *Catalog) Lookup(ctx context.Context, ids []string) (map[string]models.MenuItem, error) {
	items, err := c.DB.GetItems(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load menu items")
	}
	byID := make(map[string]models.MenuItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			return nil, apperr.Validation("menu item %s does not exist", id)
		}
		if !item.Available {
			return nil, apperr.Validation("menu item %s (%s) is not available", id, item.Name)
		}
	}
	return byID, nil
}
