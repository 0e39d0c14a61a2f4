package main

import (
	"context"
	"time"

	healthhandler "roombook/internal/health/handler"
	organizationshandler "roombook/internal/organizations/handler"
	organizationsrepo "roombook/internal/organizations/repository"
	organizationsservice "roombook/internal/organizations/service"
	organizationsvalidator "roombook/internal/organizations/validator"
	reservationshandler "roombook/internal/reservations/handler"
	"roombook/internal/reservations/index"
	reservationsrepo "roombook/internal/reservations/repository"
	reservationsservice "roombook/internal/reservations/service"
	reservationsvalidator "roombook/internal/reservations/validator"
	roomshandler "roombook/internal/rooms/handler"
	roomsrepo "roombook/internal/rooms/repository"
	roomsservice "roombook/internal/rooms/service"
	roomsvalidator "roombook/internal/rooms/validator"
	"roombook/pkg/app"
	"roombook/pkg/config"
	"roombook/pkg/events"
	"roombook/pkg/kafka"
	kafka_config "roombook/pkg/kafka/config"
)

const ServiceName = "roombook"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting roombook service")

	producer := initProducer(cfg)
	publisher := events.NewPublisher(producer, cfg.Log, ServiceName)

	organizationService, roomService, reservationService := initServices(cfg, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		healthhandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		organizationshandler.NewOrganizationHandler(organizationService, cfg.Log),
		roomshandler.NewRoomHandler(roomService, cfg.Log),
		reservationshandler.NewReservationHandler(reservationService, cfg.Log),
	)
	serverApp.Run()

	if producer != nil {
		if err := producer.Close(); err != nil {
			cfg.Log.Warn("Failed to close event producer", "error", err)
		}
	}
}

func initServices(cfg *config.Config, publisher *events.Publisher) (
	organizationsservice.OrganizationService,
	roomsservice.RoomService,
	reservationsservice.ReservationService,
) {
	organizationRepo := organizationsrepo.NewMongoOrganizationRepository(cfg)
	roomRepo := roomsrepo.NewMongoRoomRepository(cfg)
	reservationRepo := reservationsrepo.NewMongoReservationRepository(cfg)
	lockRepo := reservationsrepo.NewMongoReservationLockRepository(cfg)

	idx := seedIndex(cfg, reservationRepo)

	organizationService := organizationsservice.NewOrganizationService(
		organizationRepo,
		roomRepo,
		reservationRepo,
		idx,
		organizationsvalidator.NewOrganizationValidator(cfg.Log),
		cfg,
	)
	roomService := roomsservice.NewRoomService(
		roomRepo,
		reservationRepo,
		organizationService,
		idx,
		roomsvalidator.NewRoomValidator(cfg.Log),
		publisher,
		cfg,
	)
	reservationService := reservationsservice.NewReservationService(
		reservationRepo,
		lockRepo,
		idx,
		roomService,
		reservationsvalidator.NewReservationValidator(cfg.Log),
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "database", cfg.MongoDatabaseName)
	return organizationService, roomService, reservationService
}

// seedIndex loads every reservation that can still conflict with a new
// admission; windows fully in the past cannot overlap a valid one.
func seedIndex(cfg *config.Config, repo reservationsrepo.ReservationRepository) *index.Index {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoConnTimeout)
	defer cancel()

	reservations, err := repo.FindAllFrom(ctx, time.Now())
	if err != nil {
		cfg.Log.Fatal("Failed to seed reservation index", "error", err)
	}

	idx := index.New()
	idx.Seed(reservations)

	cfg.Log.Info("Reservation index seeded", "reservations", len(reservations))
	return idx
}

func initProducer(cfg *config.Config) *kafka.Producer {
	if !cfg.EventsEnabled {
		cfg.Log.Info("Eventing disabled, lifecycle events will not be published")
		return nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}

	producer, err := kafka.NewProducer(kafkaCfg, events.TopicReservations, events.TopicReservationsDLQ)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event producer", "error", err)
	}

	cfg.Log.Info("Event producer initialized", "topic", events.TopicReservations)
	return producer
}
