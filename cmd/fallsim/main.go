package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/signalsfoundry/impact-predictor/core"
	"github.com/signalsfoundry/impact-predictor/internal/config"
	"github.com/signalsfoundry/impact-predictor/internal/logging"
	"github.com/signalsfoundry/impact-predictor/internal/observability"
	"github.com/signalsfoundry/impact-predictor/kb"
	"github.com/signalsfoundry/impact-predictor/model"
	"github.com/signalsfoundry/impact-predictor/timectrl"
)

const (
	healthService = "fallsim"
	vehicleID     = "uav-1"
)

func main() {
	configPath := flag.String("config", "configs/predictor.defaults.json", "path to the predictor tuning file")
	duration := flag.Duration("duration", 30*time.Second, "total simulated time")
	tick := flag.Duration("tick", 0, "evaluation tick (0 uses the config value)")
	accelerated := flag.Bool("accelerated", true, "run in accelerated mode (vs real-time)")
	windSpeed := flag.Float64("wind-speed", 0, "wind speed in m/s (overrides config)")
	windDir := flag.Float64("wind-dir", 0, "wind bearing in degrees, 0 = north (overrides config)")
	weight := flag.String("weight", "", "vehicle weight class: light, medium or heavy (overrides config mass)")
	method := flag.String("method", "motor_cutoff", "neutralization method")
	altitude := flag.Float64("altitude", 40, "hover altitude of the vehicle above the datum in metres")
	wander := flag.Bool("wander", false, "let the vehicle wander around its home point before release")
	seed := flag.Uint64("seed", 1, "random seed for wander motion")
	terrain := flag.String("terrain", "flat", "terrain model: flat, wavy or gapped")
	releaseAfter := flag.Duration("release-after", 2*time.Second, "simulated time between (re)start and release")
	episodes := flag.Int("episodes", 3, "number of predict/release/impact cycles to run")
	contacts := flag.Bool("contact-events", true, "report a contact event when the vehicle touches down")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics (empty disables)")
	grpcAddr := flag.String("grpc-addr", "", "TCP address for the gRPC health service (empty disables)")
	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tracingCfg := observability.TracingConfigFromEnv().
		WithScenario("method", *method).
		WithScenario("terrain", *terrain).
		WithScenario("vehicle_id", vehicleID)
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	tuning := loadTuning(ctx, log, *configPath)

	collector, err := observability.NewPredictionCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	loopMetrics, err := observability.NewLoopCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise loop metrics", logging.Err(err))
		os.Exit(1)
	}

	predCfg := core.PredictorConfigFromTuning(tuning)
	if predCfg.Method, err = model.ParseNeutralizationMethod(*method); err != nil {
		log.Error(ctx, "invalid -method", logging.Err(err))
		os.Exit(2)
	}

	mass := tuning.GetMassKg()
	if set["weight"] {
		wc, err := model.ParseWeightClass(*weight)
		if err != nil {
			log.Error(ctx, "invalid -weight", logging.Err(err))
			os.Exit(2)
		}
		mass = wc.MassKg()
	}

	wind := core.NewConstantWind(tuning.GetWindSpeedMps(), tuning.GetWindDirectionDeg())
	if set["wind-speed"] {
		wind.SetSpeed(*windSpeed)
	}
	if set["wind-dir"] {
		wind.SetDirection(*windDir)
	}

	ground, cache, err := buildGround(*terrain, tuning)
	if err != nil {
		log.Error(ctx, "invalid terrain", logging.Err(err))
		os.Exit(2)
	}

	home := model.Vec3{Y: *altitude}
	var powered core.MotionModel = core.HoverMotion{}
	if *wander {
		powered = core.NewWanderMotion(home, 15, 4, *altitude*0.5, *seed)
	}
	vehicle := core.NewVehicle(model.VehicleDefinition{
		ID:            vehicleID,
		Name:          "Target",
		MassKg:        mass,
		BottomOffsetM: tuning.GetBottomOffsetM(),
	}, home, powered)

	engine, err := core.NewEngine(core.EngineConfig{
		Source:       vehicle,
		Ground:       ground,
		Wind:         wind,
		Predictor:    predCfg,
		MinAltitudeM: tuning.GetMinAltitudeM(),
		Logger:       log,
		Metrics:      collector,
	})
	if err != nil {
		log.Error(ctx, "failed to build engine", logging.Err(err))
		os.Exit(1)
	}

	store := kb.NewKnowledgeBase()
	store.Subscribe(func(ev kb.Event) {
		if ev.Type == kb.EventEpisodeCompleted {
			printRecord(ev.Episode)
		}
	})

	stepTick := tuning.GetTick()
	if *tick > 0 {
		stepTick = *tick
	}
	mode := timectrl.RealTime
	if *accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(time.Now().UTC(), stepTick, mode)

	run := &runner{
		engine:       engine,
		vehicle:      vehicle,
		ground:       ground,
		cache:        cache,
		store:        store,
		loop:         loopMetrics,
		log:          log,
		dt:           stepTick.Seconds(),
		gravity:      predCfg.GravityMps2,
		releaseAfter: releaseAfter.Seconds(),
		contacts:     *contacts,
		episodes:     *episodes,
	}
	run.nextRelease = run.releaseAfter

	g, gctx := errgroup.WithContext(ctx)
	simCtx, cancelSim := context.WithCancel(gctx)
	defer cancelSim()
	run.stop = cancelSim
	tc.AddListener(func(time.Time) { run.onTick(simCtx) })

	log.Info(ctx, "starting fall simulation",
		logging.Duration("tick", stepTick),
		logging.Duration("duration", *duration),
		logging.Float64("mass_kg", mass),
		logging.String("method", predCfg.Method.String()),
		logging.String("terrain", *terrain),
		logging.String("wind", fmt.Sprintf("%.1f m/s %s", wind.Current().SpeedMps, wind.Current().Cardinal())),
	)

	g.Go(func() error {
		defer stop()
		<-tc.Start(simCtx, *duration)
		return nil
	})

	if metricsSrv := serveMetrics(*metricsAddr, collector, log); metricsSrv != nil {
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	if *grpcAddr != "" {
		server, hs := newHealthServer(collector, log)
		lis, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			log.Error(ctx, "failed to listen for gRPC", logging.String("addr", *grpcAddr), logging.Err(err))
			os.Exit(1)
		}
		log.Info(ctx, "starting gRPC health server", logging.String("addr", *grpcAddr))
		g.Go(func() error { return server.Serve(lis) })
		g.Go(func() error {
			<-gctx.Done()
			hs.Shutdown()
			server.GracefulStop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error(ctx, "fall simulation failed", logging.Err(err))
	}
	printSummary(store.Summary())
}

// runner is the per-tick glue between the vehicle, the engine and the store.
// It only runs on the time controller goroutine.
type runner struct {
	engine  *core.Engine
	vehicle *core.Vehicle
	ground  core.GroundProbe
	cache   *core.CachedProbe
	store   *kb.KnowledgeBase
	loop    *observability.LoopCollector
	log     logging.Logger
	stop    context.CancelFunc

	dt           float64
	gravity      float64
	releaseAfter float64
	nextRelease  float64
	impactAt     float64
	contacts     bool
	episodes     int
	completed    int
}

func (r *runner) onTick(ctx context.Context) {
	r.vehicle.Advance(r.dt)

	if r.contacts && r.vehicle.Landed() && r.engine.Phase() == model.PhaseReleased {
		obs := r.vehicle.Observation()
		ev := core.ContactEvent{Position: obs.Position, Velocity: obs.Velocity, Timestamp: obs.Timestamp}
		if err := r.engine.OnImpactDetected(ctx, ev); err != nil {
			r.log.Warn(ctx, "contact event rejected", logging.Err(err))
		}
	}

	start := time.Now()
	err := r.engine.OnTick(ctx)
	r.loop.ObserveTick(time.Since(start), err)
	if r.cache != nil {
		r.loop.SetGroundCacheEntries(r.cache.Len())
	}

	now := r.vehicle.Time()
	switch r.engine.Phase() {
	case model.PhaseLive, model.PhasePredicted:
		if now >= r.nextRelease {
			r.release(ctx)
		}
	case model.PhaseImpactResult:
		if r.impactAt == 0 {
			r.impactAt = now
		}
		if now-r.impactAt >= 1 {
			r.completed++
			if r.completed >= r.episodes {
				r.stop()
				break
			}
			r.engine.Reset(ctx)
			r.vehicle.Reset()
			r.impactAt = 0
			r.nextRelease = now + r.releaseAfter
		}
	}

	for _, ev := range r.engine.Events() {
		if err := r.store.Apply(ev); err != nil {
			r.log.Warn(ctx, "failed to record engine event", logging.String("event", ev.Type.String()), logging.Err(err))
		}
	}
}

func (r *runner) release(ctx context.Context) {
	pred := r.engine.ComputePrediction(ctx)
	if !pred.Valid {
		r.nextRelease = r.vehicle.Time() + r.releaseAfter
		return
	}
	fmt.Printf("[t=%.2fs] prediction: impact in %.2fs at (%.1f, %.1f), drift %.1fm, energy %.0fJ, risk %s (%.2f) | %s\n",
		r.vehicle.Time(), pred.TimeToImpact, pred.ImpactPoint.X, pred.ImpactPoint.Z,
		pred.DriftRadiusM, pred.ImpactEnergyJ, pred.RiskLevel, pred.Risk01, pred.Advice())

	if _, err := r.engine.OnReleaseRequested(ctx); err != nil {
		r.log.Warn(ctx, "release failed", logging.Err(err))
		return
	}
	r.vehicle.Release(r.engine.Wind().Current(), r.gravity, r.ground)
}

func loadTuning(ctx context.Context, log logging.Logger, path string) *config.TuningConfig {
	if path == "" {
		return config.EmptyTuningConfig()
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		log.Warn(ctx, "using built-in tuning defaults", logging.String("path", path), logging.Err(err))
		return config.EmptyTuningConfig()
	}
	log.Info(ctx, "loaded tuning config", logging.String("path", path))
	return cfg
}

func buildGround(kind string, tuning *config.TuningConfig) (core.GroundProbe, *core.CachedProbe, error) {
	var probe core.GroundProbe
	switch kind {
	case "flat", "":
		probe = core.FlatGround{}
	case "wavy":
		probe = core.DefaultWavyTerrain()
	case "gapped":
		probe = core.GappedProbe{
			Inner: core.DefaultWavyTerrain(),
			Gaps:  []core.Gap{{CenterX: 0, CenterZ: 8, RadiusM: 6}},
		}
	default:
		return nil, nil, fmt.Errorf("unknown terrain %q", kind)
	}

	if tuning.GetGroundCacheSize() <= 0 {
		return probe, nil, nil
	}
	cached, err := core.NewCachedProbe(probe, tuning.GetGroundCacheSize(), tuning.GetGroundCellSizeM())
	if err != nil {
		return nil, nil, err
	}
	return cached, cached, nil
}

func newHealthServer(collector *observability.PredictionCollector, log logging.Logger) (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			observability.LoggingUnaryServerInterceptor(log),
			collector.UnaryServerInterceptor(),
		),
	)
	hs := health.NewServer()
	hs.SetServingStatus(healthService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, hs)
	return server, hs
}

func serveMetrics(addr string, collector *observability.PredictionCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func printRecord(ep kb.Episode) {
	rec := ep.Record
	fmt.Printf("[episode %s] impact via %s at (%.2f, %.2f, %.2f)\n", ep.ID, rec.Source, rec.ImpactPoint.X, rec.ImpactPoint.Y, rec.ImpactPoint.Z)
	fmt.Printf("  time to impact: predicted %.3fs actual %.3fs (error %+.3fs)\n", rec.PredictedTTI, rec.ActualTTI, rec.TimeErrorS())
	fmt.Printf("  energy:         predicted %.1fJ actual %.1fJ (error %+.1fJ)\n", rec.PredictedEnergyJ, rec.ActualEnergyJ, rec.EnergyErrorJ())
	fmt.Printf("  position error: %.2fm\n", rec.PositionErrorM)
}

func printSummary(sum kb.AccuracySummary) {
	fmt.Printf("episodes: %d released, %d completed\n", sum.Episodes, sum.Completed)
	if sum.Completed == 0 {
		return
	}
	for src, n := range sum.BySource {
		fmt.Printf("  %-16s %d\n", src, n)
	}
	fmt.Printf("  |time error|     mean %.3fs p95 %.3fs max %.3fs\n", sum.TimeErrorS.Mean, sum.TimeErrorS.P95, sum.TimeErrorS.Max)
	fmt.Printf("  position error   mean %.2fm p95 %.2fm max %.2fm\n", sum.PositionErrorM.Mean, sum.PositionErrorM.P95, sum.PositionErrorM.Max)
	fmt.Printf("  |energy error|   mean %.1fJ stddev %.1fJ\n", sum.EnergyErrorJ.Mean, sum.EnergyErrorJ.StdDev)
}
