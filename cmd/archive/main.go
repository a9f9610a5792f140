// Command archive copies the finished queue entries of one operating day
// into queue_archive. Run it after closing time.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"clinic-queue/internal/config"
	"clinic-queue/internal/helper"
	"clinic-queue/internal/queue"
	"clinic-queue/internal/store"
)

func main() {
	date := flag.String("date", "", "operating day to archive (YYYY-MM-DD), defaults to today")
	flag.Parse()

	config.LoadEnv()
	config.InitLogger(config.GetEnv("LOG_ENV", "production"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	loc, err := time.LoadLocation(config.GetEnv("CLINIC_TZ", "Local"))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid CLINIC_TZ")
	}

	day := *date
	if day == "" {
		day = helper.OperatingDay(time.Now(), loc)
	}
	if _, err := time.Parse("2006-01-02", day); err != nil {
		log.Fatal().Str("date", day).Msg("date must be YYYY-MM-DD")
	}

	db, err := config.OpenDB(ctx, loc)
	if err != nil {
		log.Fatal().Err(err).Msg("mysql")
	}
	defer db.Close()

	s := store.NewMySQL(db)
	stations, err := s.Stations(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load stations")
	}
	route, err := queue.NewRoute(stations)
	if err != nil {
		log.Fatal().Err(err).Msg("station route")
	}

	ctl := queue.NewController(s, route, queue.WithLocation(loc), queue.WithLogger(config.Component("archive")))
	n, err := ctl.Archive(ctx, day)
	if err != nil {
		log.Fatal().Err(err).Str("day", day).Msg("archive failed")
	}
	log.Info().Str("day", day).Int("archived", n).Msg("archive done")
}
