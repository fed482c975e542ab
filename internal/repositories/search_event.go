package repositories

import (
	"time"

	"rigshare/internal/models"

	"gorm.io/gorm"
)

// SearchEventRepository records location searches and serves the bounded
// history the triangulation detector reads.
type SearchEventRepository interface {
	Create(event *models.SearchEvent) error
	RecentByPair(searcherID, targetID uint, since time.Time) ([]models.SearchEvent, error)
}

type searchEventRepository struct {
	db *gorm.DB
}

func NewSearchEventRepository(db *gorm.DB) SearchEventRepository {
	return &searchEventRepository{db: db}
}

func (r *searchEventRepository) Create(event *models.SearchEvent) error {
	return r.db.Create(event).Error
}

func (r *searchEventRepository) RecentByPair(searcherID, targetID uint, since time.Time) ([]models.SearchEvent, error) {
	var events []models.SearchEvent
	err := r.db.Where("searcher_id = ? AND target_user_id = ? AND searched_at >= ?",
		searcherID, targetID, since).
		Order("searched_at ASC").
		Find(&events).Error
	return events, err
}
