package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Vehicle is the registration payload for a simulated truck.
type Vehicle struct {
	ID                  string `json:"id,omitempty"`
	Name                string `json:"name"`
	Plate               string `json:"plate"`
	Type                string `json:"type"`
	Make                string `json:"make"`
	Model               string `json:"model"`
	Year                int    `json:"year"`
	DriverID            string `json:"driver_id,omitempty"`
	RegistrationMileage int    `json:"registration_mileage"`
	CurrentMileage      int    `json:"current_mileage,omitempty"`
}

// TruckState tracks a truck's odometer between ticks.
type TruckState struct {
	VehicleID string
	Mileage   int
	// DailyKm is the average distance the truck covers per tick.
	DailyKm int
}

var truckMakes = []struct{ make, model string }{
	{"Volvo", "FH16"},
	{"Scania", "R500"},
	{"MAN", "TGX"},
	{"Mercedes-Benz", "Actros"},
	{"DAF", "XF"},
	{"Iveco", "S-Way"},
}

// APIClient talks to the maintenance API with a bearer token.
type APIClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{BaseURL: baseURL, Token: token, HTTP: &http.Client{Timeout: 10 * time.Second}}
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Login exchanges credentials for an access token and keeps it on the client.
func (c *APIClient) Login(ctx context.Context, username, password string) error {
	var resp struct {
		Token string `json:"token"`
	}
	creds := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return err
	}
	c.Token = resp.Token
	return nil
}

func (c *APIClient) RegisterVehicle(ctx context.Context, v Vehicle) (*Vehicle, error) {
	var created Vehicle
	if err := c.do(ctx, http.MethodPost, "/vehicles", v, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *APIClient) UpdateMileage(ctx context.Context, vehicleID string, mileage int) error {
	return c.do(ctx, http.MethodPatch, "/vehicles/"+vehicleID+"/mileage", map[string]int{"mileage": mileage}, nil)
}

// OverdueCount returns the number of overdue maintenance alerts across the fleet.
func (c *APIClient) OverdueCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/maintenance/alerts/overdue", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func randomTruck(i int) Vehicle {
	mm := truckMakes[rand.Intn(len(truckMakes))]
	return Vehicle{
		Name:                fmt.Sprintf("truck-%03d", i+1),
		Plate:               fmt.Sprintf("SIM-%04d", rand.Intn(10000)),
		Type:                "truck",
		Make:                mm.make,
		Model:               mm.model,
		Year:                2015 + rand.Intn(10),
		RegistrationMileage: rand.Intn(200000),
	}
}

// nextMileage advances the odometer by roughly DailyKm, never backwards.
func (s *TruckState) nextMileage() int {
	jitter := s.DailyKm / 4
	delta := s.DailyKm
	if jitter > 0 {
		delta += rand.Intn(2*jitter+1) - jitter
	}
	if delta < 0 {
		delta = 0
	}
	s.Mileage += delta
	return s.Mileage
}

// registerFleet registers size trucks and returns the ones the API accepted.
func registerFleet(ctx context.Context, c *APIClient, size, dailyKm int) []*TruckState {
	states := make([]*TruckState, 0, size)
	for i := 0; i < size; i++ {
		v, err := c.RegisterVehicle(ctx, randomTruck(i))
		if err != nil {
			log.WithError(err).Error("Failed to register vehicle")
			continue
		}
		states = append(states, &TruckState{VehicleID: v.ID, Mileage: v.CurrentMileage, DailyKm: dailyKm})
	}
	return states
}

// tick advances every truck once and returns how many odometer updates succeeded.
func tick(ctx context.Context, c *APIClient, states []*TruckState) int {
	updated := 0
	for _, s := range states {
		mileage := s.nextMileage()
		if err := c.UpdateMileage(ctx, s.VehicleID, mileage); err != nil {
			log.WithError(err).WithField("vehicle_id", s.VehicleID).Warn("Failed to update mileage")
			continue
		}
		updated++
	}

	overdue, err := c.OverdueCount(ctx)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch overdue alerts")
		return updated
	}
	log.WithFields(log.Fields{"updated": updated, "overdue": overdue}).Info("Simulation round complete")
	return updated
}

func simulate(ctx context.Context, c *APIClient, states []*TruckState, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx, c, states)
		}
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}
	fleetSize := envInt("FLEET_SIZE", 10)
	dailyKm := envInt("SIM_KM_PER_TICK", 400)
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 5)) * time.Second

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := NewAPIClient(apiURL, os.Getenv("SIM_AUTH_TOKEN"))
	if client.Token == "" {
		if err := client.Login(ctx, os.Getenv("SIM_USERNAME"), os.Getenv("SIM_PASSWORD")); err != nil {
			log.WithError(err).Fatal("Failed to log in; set SIM_AUTH_TOKEN or SIM_USERNAME and SIM_PASSWORD for an admin user")
		}
	}

	log.WithFields(log.Fields{
		"fleet_size":  fleetSize,
		"api_url":     apiURL,
		"interval":    interval,
		"km_per_tick": dailyKm,
	}).Info("Starting fleet mileage simulation")

	states := registerFleet(ctx, client, fleetSize, dailyKm)
	log.WithField("created_vehicles", len(states)).Info("Vehicle registration completed")
	if len(states) == 0 {
		log.Error("No vehicles created. Ensure the token belongs to an admin and the API is reachable. Exiting.")
		return
	}

	simulate(ctx, client, states, interval)
	log.Info("Simulation stopped")
}
