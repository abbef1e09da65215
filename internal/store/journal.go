package store

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"market-relay/internal/model"
	"market-relay/internal/model/enum"
	"market-relay/pkg/exception"
)

type subscriptionRow struct {
	Class     string    `gorm:"primaryKey;size:4"`
	Ticker    string    `gorm:"primaryKey;size:32"`
	CreatedAt time.Time `gorm:"not null"`
}

func (subscriptionRow) TableName() string {
	return "relay_subscriptions"
}

func newRow(sub model.Subscription) subscriptionRow {
	return subscriptionRow{Class: sub.Class.String(), Ticker: sub.Ticker}
}

// Journal persists runtime subscription changes so a restarted relay
// resubscribes to them.
type Journal struct {
	db *gorm.DB
}

func NewJournal(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, errors.Wrap(exception.ErrNilInstance, "journal db")
	}
	return &Journal{db: db}, nil
}

// Migrate creates or updates the journal table.
func (j *Journal) Migrate(ctx context.Context) error {
	if err := j.db.WithContext(ctx).AutoMigrate(&subscriptionRow{}); err != nil {
		return errors.Wrap(err, "migrate subscription journal")
	}
	return nil
}

func (j *Journal) Add(ctx context.Context, sub model.Subscription) error {
	if err := addQuery(j.db.WithContext(ctx), sub).Error; err != nil {
		return errors.Wrapf(err, "journal add %s", sub)
	}
	return nil
}

func (j *Journal) Remove(ctx context.Context, sub model.Subscription) error {
	if err := removeQuery(j.db.WithContext(ctx), sub).Error; err != nil {
		return errors.Wrapf(err, "journal remove %s", sub)
	}
	return nil
}

// List returns the journaled subscriptions in insertion order.
func (j *Journal) List(ctx context.Context) ([]model.Subscription, error) {
	var rows []subscriptionRow
	if err := listQuery(j.db.WithContext(ctx), &rows).Error; err != nil {
		return nil, errors.Wrap(err, "journal list")
	}
	return fromRows(rows), nil
}

func addQuery(tx *gorm.DB, sub model.Subscription) *gorm.DB {
	row := newRow(sub)
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
}

func removeQuery(tx *gorm.DB, sub model.Subscription) *gorm.DB {
	row := newRow(sub)
	return tx.Where("class = ? AND ticker = ?", row.Class, row.Ticker).Delete(&subscriptionRow{})
}

func listQuery(tx *gorm.DB, rows *[]subscriptionRow) *gorm.DB {
	return tx.Order("created_at, class, ticker").Find(rows)
}

func fromRows(rows []subscriptionRow) []model.Subscription {
	subs := make([]model.Subscription, 0, len(rows))
	for _, row := range rows {
		class, ok := enum.ParseEventClass(row.Class)
		sub := model.Subscription{Class: class, Ticker: row.Ticker}
		if !ok || !sub.IsValid() {
			logs.Warnf("skip journaled subscription %s.%s", row.Class, row.Ticker)
			continue
		}
		subs = append(subs, sub)
	}
	return subs
}
