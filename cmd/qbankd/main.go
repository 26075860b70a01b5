package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/DDDDDaryl/question-bank/internal/auth"
	"github.com/DDDDDaryl/question-bank/internal/config"
	"github.com/DDDDDaryl/question-bank/internal/server"
	"github.com/DDDDDaryl/question-bank/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	cli, err := mongo.Connect(dialCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}
	defer func() { _ = cli.Disconnect(context.Background()) }()
	if err := cli.Ping(dialCtx, readpref.Primary()); err != nil {
		log.Fatalf("mongo ping: %v", err)
	}

	users, err := auth.NewMongoUserStore(ctx, cli, cfg.Mongo.Database, cfg.Mongo.UsersCollection)
	if err != nil {
		log.Fatalf("user store: %v", err)
	}
	questions, err := store.NewMongoQuestionStore(ctx, cli, cfg.Mongo.Database, cfg.Mongo.QuestionsCollection)
	if err != nil {
		log.Fatalf("question store: %v", err)
	}
	mistakes, err := store.NewMongoMistakeStore(ctx, cli, cfg.Mongo.Database, cfg.Mongo.MistakesCollection)
	if err != nil {
		log.Fatalf("mistake store: %v", err)
	}
	settings := store.NewMongoSettingsStore(cli, cfg.Mongo.Database, cfg.Mongo.SettingsCollection)

	seeds := make([]server.SeedUser, 0, len(cfg.SeedUsers))
	for _, su := range cfg.SeedUsers {
		seeds = append(seeds, server.SeedUser{
			Username: su.Username,
			Email:    su.Email,
			Password: su.Password,
			Role:     auth.Role(su.Role),
		})
	}

	srv, err := server.New(ctx, server.Config{
		JWTSecret:             []byte(cfg.Auth.JWTSecret),
		JWTIssuer:             cfg.Auth.Issuer,
		AdminRegistrationCode: cfg.Auth.AdminRegistrationCode,
		SecureCookies:         cfg.Server.SecureCookies,
		SeedUsers:             seeds,
	}, server.Stores{
		Users:     users,
		Questions: questions,
		Mistakes:  mistakes,
		Settings:  settings,
	})
	if err != nil {
		log.Fatal(err)
	}

	log.Printf("listening on %s", cfg.Server.Addr)
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, srv.Handler()))
}
