package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"goride/internal/api"
	"goride/internal/channel"
	"goride/internal/config"
	"goride/internal/controller"
	"goride/internal/location"
	"goride/internal/models"
	"goride/internal/store"
	"goride/internal/utils"
	"goride/pkg/logger"
	"goride/pkg/maps"
)

func main() {
	var (
		email    = flag.String("email", "", "account email (omit to reuse stored session)")
		password = flag.String("password", "", "account password")
		pickup   = flag.String("pickup", "", "pickup as lat,lng[,address]")
		dropoff  = flag.String("dropoff", "", "dropoff as lat,lng[,address]")
		vehicle  = flag.String("vehicle", "sedan", "vehicle model to request")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stderr",
		Colors: cfg.App.Debug,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.App.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.App.MetricsAddr, mux); err != nil {
				log.WithError(err).Warn("Metrics endpoint stopped")
			}
		}()
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		log.WithError(err).Fatal("Failed to open state store")
	}

	client := api.NewClient(cfg.API, st, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
	userID, role, err := establishSession(ctx, client, st, cfg, *email, *password)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("Failed to establish session")
	}

	routes, err := buildRouteProvider(cfg.Maps)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize route provider")
	}

	pickupPlace, err := parsePlace(*pickup)
	if *pickup != "" && err != nil {
		log.WithError(err).Fatal("Invalid pickup")
	}
	dropoffPlace, err := parsePlace(*dropoff)
	if *dropoff != "" && err != nil {
		log.WithError(err).Fatal("Invalid dropoff")
	}

	from := utils.Point{Lat: pickupPlace.Lat, Lng: pickupPlace.Lng}
	to := utils.Point{Lat: dropoffPlace.Lat, Lng: dropoffPlace.Lng}
	if from == (utils.Point{}) {
		from = utils.Point{Lat: cfg.Ride.DefaultLatitude, Lng: cfg.Ride.DefaultLongitude}
		to = from
	}
	source := &location.SimulatedSource{
		From: from,
		To:   to,
		Tick: 2 * time.Second,
	}
	sampler := location.NewSampler(source, location.Options{
		HighAccuracy: cfg.Location.HighAccuracy,
		MinInterval:  cfg.Location.MinInterval,
		MaxStale:     cfg.Location.MaxStale,
	}, log)

	adapter := channel.NewAdapter(cfg.Channel, st, log)

	ctrl := controller.New(controller.Deps{
		Config:   cfg.Ride,
		Role:     controller.Role(role),
		UserID:   userID,
		Logger:   log,
		Sampler:  sampler,
		Channel:  adapter,
		Routes:   routes,
		Store:    st,
		Bookings: client,
	})

	mountCtx, cancel := context.WithTimeout(context.Background(), cfg.Channel.HandshakeTimeout)
	err = ctrl.Mount(mountCtx, channel.Credentials{UserID: userID, Role: role})
	cancel()
	if err != nil {
		log.WithError(err).Fatal("Failed to mount ride view")
	}
	defer ctrl.Unmount()

	if *pickup != "" && *dropoff != "" {
		reqCtx, cancel := context.WithTimeout(context.Background(), cfg.API.Timeout)
		booking, err := ctrl.RequestRide(reqCtx, models.BookingRequest{
			Pickup:       pickupPlace,
			Dropoff:      dropoffPlace,
			VehicleModel: *vehicle,
		})
		cancel()
		if err != nil {
			log.WithError(err).Fatal("Failed to request ride")
		}
		fmt.Printf("requested ride %s (pin on driver accept)\n", booking.ID)
	}

	runPrompt(ctrl, log)
}

// establishSession reuses persisted tokens when present, otherwise logs
// in with the supplied credentials.
func establishSession(ctx context.Context, client *api.Client, st *store.Store, cfg *config.Config, email, password string) (userID, role string, err error) {
	if email != "" {
		resp, err := client.Login(ctx, email, password)
		if err != nil {
			return "", "", err
		}
		return resp.User.ID, resp.User.Role, nil
	}

	if access, _ := st.Tokens(); access == "" {
		return "", "", fmt.Errorf("no stored session; pass -email and -password")
	}
	profile, err := client.Profile(ctx)
	if err != nil {
		return "", "", err
	}
	role = profile.Role
	if role == "" {
		role = cfg.App.Role
	}
	return profile.ID, role, nil
}

func buildRouteProvider(cfg *config.MapsConfig) (maps.RouteProvider, error) {
	switch cfg.Provider {
	case "mapbox":
		return maps.NewMapboxProvider(cfg.Mapbox.AccessToken), nil
	default:
		return maps.NewGoogleMapsProvider(cfg.GoogleMaps.APIKey)
	}
}

func parsePlace(raw string) (models.Place, error) {
	if raw == "" {
		return models.Place{}, nil
	}
	parts := strings.SplitN(raw, ",", 3)
	if len(parts) < 2 {
		return models.Place{}, fmt.Errorf("want lat,lng[,address], got %q", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return models.Place{}, fmt.Errorf("bad latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return models.Place{}, fmt.Errorf("bad longitude: %w", err)
	}
	place := models.Place{Lat: lat, Lng: lng}
	if len(parts) == 3 {
		place.Address = strings.TrimSpace(parts[2])
	}
	return place, nil
}

// runPrompt reads user actions from stdin until EOF, quit or SIGINT.
func runPrompt(ctrl *controller.Controller, log *logger.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	fmt.Println("commands: view | pin <digits> | say <text> | cancel [reason] | complete | quit")

	for {
		select {
		case <-sigs:
			fmt.Println()
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if done := dispatch(ctrl, log, strings.TrimSpace(line)); done {
				return
			}
		}
	}
}

func dispatch(ctrl *controller.Controller, log *logger.Logger, line string) bool {
	cmd, rest, _ := strings.Cut(line, " ")

	switch cmd {
	case "", "view":
		printView(ctrl.View())
	case "pin":
		if err := ctrl.SubmitPin(rest); err != nil {
			fmt.Printf("pin: %v\n", err)
		} else {
			fmt.Println("ride started")
		}
	case "say":
		if err := ctrl.SendChat(rest); err != nil {
			fmt.Printf("say: %v\n", err)
		}
	case "cancel":
		if err := ctrl.Cancel(rest); err != nil {
			fmt.Printf("cancel: %v\n", err)
		} else {
			fmt.Println("ride cancelled")
		}
	case "complete":
		if err := ctrl.Complete(); err != nil {
			fmt.Printf("complete: %v\n", err)
		} else {
			fmt.Println("ride completed")
		}
	case "quit", "exit":
		return true
	default:
		fmt.Printf("unknown command %q\n", cmd)
	}
	return false
}

func printView(v controller.View) {
	if v.RideID == "" {
		fmt.Println("no active ride")
		return
	}

	fmt.Printf("ride %s: %s\n", v.RideID, v.Status)
	if v.Counterparty.Name != "" {
		fmt.Printf("  with: %s\n", v.Counterparty.Name)
	}
	for _, m := range v.Markers {
		fmt.Printf("  %-12s %.5f,%.5f %s\n", m.Kind, m.Lat, m.Lng, m.Label)
	}
	if v.Route != nil {
		fmt.Printf("  route: %s, %s\n", v.Route.ETAText, v.Route.DistanceText)
	}
	if v.CancelAvailable {
		fmt.Printf("  cancel available for %ds\n", v.CancelSecondsLeft)
	}
	for _, msg := range v.ChatLog {
		fmt.Printf("  [%s] %s: %s\n", msg.Timestamp.Format("15:04:05"), msg.Sender, msg.Text)
	}
	if v.ConnectionLost {
		fmt.Println("  ! realtime connection lost")
	}
	if v.RouteDegraded {
		fmt.Println("  ! route may be stale")
	}
	if v.LastError != "" {
		fmt.Printf("  ! %s\n", v.LastError)
	}
}
