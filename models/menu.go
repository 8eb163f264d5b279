package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mmdatafocus/closing_backend/config"
	"github.com/mmdatafocus/closing_backend/utils"
	"gorm.io/gorm"
)

const menuImportBatchSize = 200

type Menu struct {
	ID       string  `gorm:"primaryKey;size:64" json:"id"`
	Category string  `gorm:"size:100;not null" json:"category"`
	Name     string  `gorm:"size:255;not null" json:"name"`
	Unit     *string `gorm:"size:50" json:"unit"`
	Price    *int    `json:"price"`
	Note     *string `gorm:"type:text" json:"note"`
}

type NewMenu struct {
	ID       string  `json:"id"`
	Category string  `json:"category" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Unit     *string `json:"unit"`
	Price    *int    `json:"price" binding:"omitempty,gte=0"`
	Note     *string `json:"note"`
}

type MenuService struct {
	db *gorm.DB
}

func NewMenuService(db *gorm.DB) *MenuService {
	return &MenuService{db: db}
}

func (input *NewMenu) toMenu() *Menu {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uuid.NewString()
	}
	return &Menu{
		ID:       id,
		Category: strings.TrimSpace(input.Category),
		Name:     strings.TrimSpace(input.Name),
		Unit:     input.Unit,
		Price:    input.Price,
		Note:     input.Note,
	}
}

func (s *MenuService) Create(ctx context.Context, input *NewMenu) (*Menu, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	menu := input.toMenu()
	if err := s.db.WithContext(ctx).Create(menu).Error; err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: menu %s already exists", utils.ErrorDuplicateKey, menu.ID)
		}
		config.LogError(config.GetLogger(), "menu.go", "Create", "create menu", menu.ID, err)
		return nil, err
	}
	return menu, nil
}

func (s *MenuService) List(ctx context.Context) ([]*Menu, error) {
	menus := make([]*Menu, 0)
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&menus).Error; err != nil {
		return nil, err
	}
	return menus, nil
}

func (s *MenuService) Get(ctx context.Context, id string) (*Menu, error) {
	var menu Menu
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&menu).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: menu %s", utils.ErrorRecordNotFound, id)
		}
		return nil, err
	}
	return &menu, nil
}

func (s *MenuService) Delete(ctx context.Context, id string) (*Menu, error) {
	var result *Menu
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var menu Menu
		if err := tx.Where("id = ?", id).Take(&menu).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: menu %s", utils.ErrorRecordNotFound, id)
			}
			return err
		}
		if err := tx.Delete(&menu).Error; err != nil {
			return err
		}
		result = &menu
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetByIds returns the menus found for ids, in no particular order.
func (s *MenuService) GetByIds(ctx context.Context, ids []string) ([]*Menu, error) {
	menus := make([]*Menu, 0, len(ids))
	if len(ids) == 0 {
		return menus, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&menus).Error; err != nil {
		return nil, err
	}
	return menus, nil
}

// Import inserts every menu in a single transaction.
func (s *MenuService) Import(ctx context.Context, inputs []*NewMenu) ([]*Menu, error) {
	menus := make([]*Menu, 0, len(inputs))
	for _, input := range inputs {
		menus = append(menus, input.toMenu())
	}
	if len(menus) == 0 {
		return menus, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(menus, menuImportBatchSize).Error
	})
	if err != nil {
		if utils.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: menu import", utils.ErrorDuplicateKey)
		}
		config.LogError(config.GetLogger(), "menu.go", "Import", "import menus", len(menus), err)
		return nil, err
	}
	return menus, nil
}
