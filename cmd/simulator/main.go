package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

// ExpenseRequest is the body posted to /expenses.
type ExpenseRequest struct {
	CarID         string    `json:"carId"`
	Category      string    `json:"category"`
	Amount        float64   `json:"amount"`
	Description   string    `json:"description"`
	Date          time.Time `json:"date"`
	Location      string    `json:"location,omitempty"`
	Mileage       *int      `json:"mileage,omitempty"`
	PaymentMethod string    `json:"paymentMethod"`
}

// expenseProfile bounds the amounts generated for one category.
type expenseProfile struct {
	Category    string
	Description string
	Min, Max    float64
	Weight      int
}

var profiles = []expenseProfile{
	{"FUEL", "Fuel top-up", 40000, 90000, 8},
	{"CARWASH", "Car wash", 8000, 25000, 3},
	{"PARKING", "Parking", 2000, 15000, 4},
	{"TOLL", "Highway toll", 1500, 12000, 4},
	{"MAINTENANCE", "Scheduled maintenance", 30000, 250000, 1},
	{"ACCESSORIES", "Accessories", 10000, 80000, 1},
}

var paymentMethods = []string{"CARD", "CARD", "CARD", "CASH", "MOBILE_PAY", "BANK_TRANSFER"}

var locations = []string{"Gangnam", "Pangyo", "Suwon", "Incheon", "Mapo", "Ilsan"}

// apiClient talks to the car-care API as one driver.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *apiClient) authorizedPost(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// authenticate logs in, registering the driver first when the login is
// rejected.
func (c *apiClient) authenticate(ctx context.Context, username, password string) error {
	creds := map[string]string{"username": username, "password": password}
	err := c.tokenFrom(ctx, "/auth/login", creds, http.StatusOK)
	if err == nil {
		return nil
	}

	log.WithError(err).WithField("username", username).Info("Login failed, registering simulator driver")
	return c.tokenFrom(ctx, "/auth/register", map[string]string{
		"username":   username,
		"password":   password,
		"email":      username + "@simulator.local",
		"first_name": "Sim",
		"last_name":  "Driver",
	}, http.StatusCreated)
}

func (c *apiClient) tokenFrom(ctx context.Context, path string, body interface{}, want int) error {
	resp, err := c.authorizedPost(ctx, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if out.Token == "" {
		return errors.New("no token in response")
	}
	c.token = out.Token
	return nil
}

// sendExpense posts one expense and returns the id the API assigned.
func (c *apiClient) sendExpense(ctx context.Context, exp ExpenseRequest) (string, error) {
	resp, err := c.authorizedPost(ctx, "/expenses", exp)
	if err != nil {
		return "", fmt.Errorf("failed to send expense: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("expense creation failed with status: %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	id, ok := result["id"].(string)
	if !ok {
		return "", errors.New("invalid expense ID in response")
	}
	return id, nil
}

// CarState tracks the odometer of one simulated car.
type CarState struct {
	CarID   string
	Mileage int
}

func pickProfile(r *rand.Rand) expenseProfile {
	total := 0
	for _, p := range profiles {
		total += p.Weight
	}
	n := r.Intn(total)
	for _, p := range profiles {
		if n < p.Weight {
			return p
		}
		n -= p.Weight
	}
	return profiles[0]
}

// randomExpense advances the car's odometer and draws an expense dated now.
// Amounts are rounded to 100 won.
func randomExpense(r *rand.Rand, car *CarState, now time.Time) ExpenseRequest {
	p := pickProfile(r)
	car.Mileage += 5 + r.Intn(120)
	mileage := car.Mileage

	amount := p.Min + r.Float64()*(p.Max-p.Min)
	amount = float64(int(amount/100)) * 100

	return ExpenseRequest{
		CarID:         car.CarID,
		Category:      p.Category,
		Amount:        amount,
		Description:   p.Description,
		Date:          now,
		Location:      locations[r.Intn(len(locations))],
		Mileage:       &mileage,
		PaymentMethod: paymentMethods[r.Intn(len(paymentMethods))],
	}
}

func simulate(ctx context.Context, c *apiClient, cars []*CarState, interval time.Duration, r *rand.Rand) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-tick.C:
			car := cars[r.Intn(len(cars))]
			exp := randomExpense(r, car, now)
			id, err := c.sendExpense(ctx, exp)
			if err != nil {
				log.WithError(err).WithField("car_id", car.CarID).Error("Failed to record expense")
				continue
			}
			log.WithFields(log.Fields{
				"expense_id": id,
				"car_id":     car.CarID,
				"category":   exp.Category,
				"amount":     exp.Amount,
			}).Info("Recorded expense")
		}
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			return n
		}
	}
	return def
}

func main() {
	apiURL := getEnv("API_BASE_URL", "http://localhost:8080/api")
	username := getEnv("SIM_USERNAME", "simdriver")
	password := getEnv("SIM_PASSWORD", "simulator-password")
	carCount := getEnvInt("CAR_COUNT", 2)
	interval := time.Duration(getEnvInt("SIM_TICK_SECONDS", 5)) * time.Second

	log.WithFields(log.Fields{
		"api_url":   apiURL,
		"car_count": carCount,
		"interval":  interval,
	}).Info("Starting expense simulation")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newAPIClient(apiURL)
	if err := client.authenticate(ctx, username, password); err != nil {
		log.WithError(err).Error("Could not authenticate. Ensure the API is reachable. Exiting.")
		return
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	cars := make([]*CarState, carCount)
	for i := range cars {
		cars[i] = &CarState{CarID: fmt.Sprintf("sim-car-%d", i+1), Mileage: 10000 + r.Intn(50000)}
	}

	simulate(ctx, client, cars, interval, r)
	log.Info("Expense simulation stopped")
}
