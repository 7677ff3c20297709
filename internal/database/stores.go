package database

import (
	"context"
	"fmt"

	"github.com/Dias221467/FoodRescue/internal/config"
	"github.com/Dias221467/FoodRescue/internal/repository"
	"github.com/Dias221467/FoodRescue/internal/repository/memory"
	"github.com/Dias221467/FoodRescue/internal/services"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStores builds every repository over db.
func MongoStores(db *mongo.Database) services.Stores {
	return services.Stores{
		Users:         repository.NewUserRepository(db),
		FoodItems:     repository.NewFoodItemRepository(db),
		Claims:        repository.NewClaimRepository(db),
		Donations:     repository.NewDonationRepository(db),
		Events:        repository.NewEventRepository(db),
		Notifications: repository.NewNotificationRepository(db),
	}
}

// MemoryStores builds the in-process driver.
func MemoryStores() services.Stores {
	m := memory.New()
	return services.Stores{
		Users:         m.Users,
		FoodItems:     m.FoodItems,
		Claims:        m.Claims,
		Donations:     m.Donations,
		Events:        m.Events,
		Notifications: m.Notifications,
	}
}

// OpenStores returns the stores selected by cfg.StoreDriver and a function
// that releases the underlying connection.
func OpenStores(ctx context.Context, cfg *config.Config) (services.Stores, func(context.Context) error, error) {
	if cfg.StoreDriver == "memory" {
		logrus.Warn("Using in-memory store; data is lost on restart")
		return MemoryStores(), func(context.Context) error { return nil }, nil
	}

	db, err := ConnectDB(cfg)
	if err != nil {
		return services.Stores{}, nil, err
	}
	if err := EnsureIndexes(ctx, db); err != nil {
		db.Client().Disconnect(ctx)
		return services.Stores{}, nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return MongoStores(db), db.Client().Disconnect, nil
}
