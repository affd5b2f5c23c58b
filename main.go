package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/mohamedthameursassi/saferoute/admin"
	"github.com/mohamedthameursassi/saferoute/config"
	"github.com/mohamedthameursassi/saferoute/engine"
	"github.com/mohamedthameursassi/saferoute/events"
	"github.com/mohamedthameursassi/saferoute/handlers"
	"github.com/mohamedthameursassi/saferoute/preprocessing"
	"github.com/mohamedthameursassi/saferoute/routing"
	"github.com/mohamedthameursassi/saferoute/services"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, closeSource, err := accidentSource(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open accident source: %v", err)
	}
	defer closeSource()

	loader := engine.Loader{
		Accidents:      source,
		MappingsPath:   cfg.Risk.MappingsPath,
		ModelPath:      cfg.Risk.ModelPath,
		ModelURL:       cfg.Risk.ModelURL,
		ModelTimeout:   cfg.Risk.ModelTimeout,
		IndexThreshold: cfg.Risk.IndexThreshold,
	}

	log.Println("Loading risk snapshot...")
	snap, err := loader.Load(ctx)
	if err != nil {
		log.Printf("Warning: starting with an empty risk surface: %v", err)
		snap = engine.NewSnapshot(nil, nil, nil)
	}

	network, err := networkProvider(cfg)
	if err != nil {
		log.Fatalf("Failed to load road network: %v", err)
	}

	publisher := eventPublisher(cfg)
	defer publisher.Close()

	opts := []engine.Option{
		engine.WithNetwork(network),
		engine.WithPublisher(publisher),
		engine.WithTimeout(cfg.Routing.QueryTimeout),
		engine.WithRiskWeight(cfg.Routing.RiskWeight),
		engine.WithRanking(routing.RankOptions{
			RiskWeight: cfg.Routing.CandidateRiskWeight,
			TimeUnit:   cfg.Routing.CandidateTimeUnit,
		}),
		engine.WithMaxSnap(cfg.Routing.MaxSnapM),
		engine.WithWorkers(cfg.Routing.Workers),
		engine.WithFallbackSpeed(cfg.Routing.FallbackSpeedKmh),
	}
	if cfg.Services.OSRMURL != "" {
		opts = append(opts, engine.WithCandidates(services.NewOSRMClient(cfg.Services.OSRMURL, cfg.Services.Timeout)))
	}
	eng := engine.New(snap, opts...)

	var geocoder handlers.Geocoder
	if cfg.Services.NominatimURL != "" {
		geocoder = services.NewNominatim(cfg.Services.NominatimURL, cfg.Services.UserAgent, cfg.Services.Timeout)
	}

	r := gin.Default()
	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CorsOrigins) == 0 || cfg.Server.CorsOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.CorsOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"*"}
	r.Use(cors.New(corsConfig))
	handlers.NewRouteHandler(eng, geocoder).RegisterRoutes(r)

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	adminServer := &http.Server{
		Addr:    cfg.Server.AdminAddr,
		Handler: admin.NewRouter(eng, loader),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Safe route server starting on %s", cfg.Server.Addr)
		return serve(apiServer)
	})
	g.Go(func() error {
		log.Printf("Admin server starting on %s", cfg.Server.AdminAddr)
		return serve(adminServer)
	})
	g.Go(func() error {
		eng.RunReloader(gctx, loader, cfg.Risk.ReloadInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), adminServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server stopped")
}

func serve(s *http.Server) error {
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func accidentSource(ctx context.Context, cfg config.Config) (preprocessing.Source, func(), error) {
	if cfg.Risk.Source == config.SourcePostgres {
		src, err := preprocessing.NewPostgresSource(ctx, cfg.Database.DSN, cfg.Database.Table)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	}
	return preprocessing.FileSource{Path: cfg.Risk.AccidentsPath}, func() {}, nil
}

func networkProvider(cfg config.Config) (engine.NetworkProvider, error) {
	if cfg.Routing.Network == config.NetworkGraph {
		store, err := services.LoadGraphStore(cfg.Routing.GraphPath, cfg.Routing.GraphMarginM)
		if err != nil {
			return nil, err
		}
		g := store.Graph()
		log.Printf("Road graph loaded: %d nodes, %d edges", len(g.Nodes), g.EdgeCount())
		return store, nil
	}
	return services.NewOverpassNetwork(cfg.Services.OverpassURL, cfg.Routing.NetworkRadiusM, cfg.Services.Timeout), nil
}

// eventPublisher connects every configured transport. A transport that
// cannot connect is logged and skipped.
func eventPublisher(cfg config.Config) events.Publisher {
	var pubs events.Multi
	if n := cfg.Events.NATS; n.URL != "" {
		p, err := events.NewNATSPublisher(events.NATSConfig{
			URL:            n.URL,
			Subject:        n.Subject,
			MaxReconnects:  n.MaxReconnects,
			ReconnectWait:  n.ReconnectWait,
			ConnectTimeout: n.ConnectTimeout,
		})
		if err != nil {
			log.Printf("Warning: route events will not be published to NATS: %v", err)
		} else {
			pubs = append(pubs, p)
		}
	}
	if m := cfg.Events.MQTT; m.Broker != "" {
		p, err := events.NewMQTTPublisher(events.MQTTConfig{
			Broker:   m.Broker,
			ClientID: m.ClientID,
			Username: m.Username,
			Password: m.Password,
			Topic:    m.Topic,
			QoS:      m.QoS,
			Retain:   m.Retain,
		})
		if err != nil {
			log.Printf("Warning: route events will not be published to MQTT: %v", err)
		} else {
			pubs = append(pubs, p)
		}
	}
	if len(pubs) == 0 {
		return events.Noop{}
	}
	return pubs
}
