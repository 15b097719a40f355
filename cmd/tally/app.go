package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nixlim/tally/internal/activity"
	"github.com/nixlim/tally/internal/calendar"
	"github.com/nixlim/tally/internal/config"
	"github.com/nixlim/tally/internal/events"
	"github.com/nixlim/tally/internal/export"
	"github.com/nixlim/tally/internal/identity"
	"github.com/nixlim/tally/internal/pager"
	"github.com/nixlim/tally/internal/state"
	"github.com/nixlim/tally/internal/storage"
	"github.com/nixlim/tally/internal/tracker"
)

// app bundles the components every command needs.
type app struct {
	cfg        config.Config
	store      state.Store
	persistent bool
	clock      *calendar.Clock
	session    identity.SessionFile
	activity   *activity.RingBuffer
	publisher  events.Publisher
	exporter   *export.Exporter
	tracker    *tracker.Tracker

	// onChange is read by the tracker callback. Set it before Start.
	onChange func(tracker.State)
}

// newApp opens the store and the publisher and builds a tracker over them.
// Nothing is loaded until the caller starts the tracker.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	clock, err := calendar.LoadClock(cfg.Calendar.Timezone)
	if err != nil {
		return nil, err
	}
	start := cfg.Calendar.StartDay()

	store, persistent, err := storage.NewStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		store:      store,
		persistent: persistent,
		clock:      clock,
		session:    identity.SessionFile{Path: config.ExpandHome(cfg.Identity.SessionFile)},
		activity:   activity.NewRingBuffer(cfg.Display.ActivityBufferSize),
		publisher:  events.NoopPublisher{},
	}

	if cfg.Events.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.Events.NATSURL)
		if err != nil {
			log.Printf("WARNING: event publishing disabled: %v", err)
		} else {
			a.publisher = pub
		}
	}

	pageOpts := pager.Options{PageSize: cfg.Store.PageSize, MaxOffset: cfg.Store.MaxOffset}
	a.exporter = export.NewExporter(store,
		export.WithCandidates(cfg.Export.TimestampColumns),
		export.WithPageOptions(pageOpts),
	)

	ids := identity.Chain{
		identity.Static(cfg.Identity.UserID),
		a.session,
	}
	a.tracker = tracker.New(store, clock, ids, start,
		tracker.WithPageOptions(pageOpts),
		tracker.WithExporter(a.exporter),
		tracker.WithPublisher(a.publisher, cfg.Events.Subject),
		tracker.WithRecorder(a.activity),
		tracker.WithOnChange(func(st tracker.State) {
			if a.onChange != nil {
				a.onChange(st)
			}
		}),
	)
	return a, nil
}

// destination picks S3 when a bucket is configured, else the export dir.
func (a *app) destination(ctx context.Context) (export.Destination, error) {
	ec := a.cfg.Export
	if ec.S3Bucket == "" {
		return export.FileDestination{Dir: config.ExpandHome(ec.Dir)}, nil
	}
	d, err := export.NewS3Destination(ctx, ec.S3Bucket, ec.S3Prefix, ec.S3Region, ec.S3Endpoint)
	if err != nil {
		return nil, fmt.Errorf("s3 export destination: %w", err)
	}
	return d, nil
}

// start loads the signed-in user's history with a bounded wait.
func (a *app) start(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return a.tracker.Start(ctx)
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		log.Printf("ERROR: closing publisher: %v", err)
	}
	if err := a.store.Close(); err != nil {
		log.Printf("ERROR: closing store: %v", err)
	}
}

// openSignedIn builds the app and loads the signed-in user's history. It
// fails with a hint when nobody is signed in.
func openSignedIn(ctx context.Context) (*app, error) {
	a, err := newApp(ctx, *cfg)
	if err != nil {
		return nil, err
	}
	if err := a.start(ctx); err != nil {
		a.Close()
		if errors.Is(err, state.ErrNoIdentity) {
			return nil, fmt.Errorf("%s Run `tally login <user-id>` first", tracker.MsgNotLoggedIn)
		}
		return nil, err
	}
	return a, nil
}
