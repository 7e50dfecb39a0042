package main

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Clark-Hu/movie-ratings/db"
	"github.com/Clark-Hu/movie-ratings/internal/auth"
	"github.com/Clark-Hu/movie-ratings/internal/catalog"
	"github.com/Clark-Hu/movie-ratings/internal/config"
	"github.com/Clark-Hu/movie-ratings/internal/repository"
	"github.com/Clark-Hu/movie-ratings/internal/seed"
	"github.com/Clark-Hu/movie-ratings/internal/store"
)

var (
	dataPath       string
	userCount      int
	ratingsPerUser int
	reset          bool
	randSeed       uint64
	fetchTimeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the ratings database with catalog movies and fixture users",
	Long: `Seed creates every movie in the catalog, then user0@test.com ... userN@test.com
(password "test"), each rating random movies with random scores from 0 to 5.

Examples:
  seed                                   # data/movies.json, 20 users, 20 ratings each
  seed --reset                           # drop and recreate the schema first
  seed --data https://example.com/m.json # fetch the catalog over HTTP
  seed --seed 42                         # reproducible ratings`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&dataPath, "data", "data/movies.json", "Catalog file path or http(s) URL")
	rootCmd.Flags().IntVar(&userCount, "users", 20, "Number of fixture users")
	rootCmd.Flags().IntVar(&ratingsPerUser, "ratings", 20, "Ratings submitted per user")
	rootCmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate the schema before seeding")
	rootCmd.Flags().Uint64Var(&randSeed, "seed", 0, "Random seed (0 picks one)")
	rootCmd.Flags().DurationVar(&fetchTimeout, "timeout", 10*time.Second, "Timeout for HTTP catalogs")
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadDB()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags)

	st, err := store.New(ctx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	if reset {
		err = st.ResetSchema(ctx, db.Migrations)
	} else {
		err = st.EnsureSchema(ctx, db.Migrations)
	}
	if err != nil {
		return err
	}

	src, err := catalog.Open(dataPath, fetchTimeout, logger)
	if err != nil {
		return err
	}
	entries, err := src.Load(ctx)
	if err != nil {
		return err
	}

	if randSeed == 0 {
		randSeed = rand.Uint64()
	}
	logger.Printf("seeding from %s with seed %d", dataPath, randSeed)

	repo := repository.New(st)
	_, err = seed.Run(ctx,
		seed.Stores{Movies: repo.Movies, Users: repo.Users, Ratings: repo.Ratings},
		auth.NewHasher(cfg.BcryptCost),
		entries,
		seed.Options{
			Users:          userCount,
			RatingsPerUser: ratingsPerUser,
			Rand:           rand.New(rand.NewPCG(randSeed, randSeed)),
			Logger:         logger,
		})
	return err
}
