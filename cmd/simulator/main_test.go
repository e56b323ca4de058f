package main

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomExpense(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	car := &CarState{CarID: "car-1", Mileage: 1000}
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	last := car.Mileage
	for i := 0; i < 200; i++ {
		exp := randomExpense(r, car, now)
		assert.Equal(t, "car-1", exp.CarID)
		assert.Equal(t, now, exp.Date)
		require.NotNil(t, exp.Mileage)
		assert.Greater(t, *exp.Mileage, last)
		last = *exp.Mileage

		var profile *expenseProfile
		for i := range profiles {
			if profiles[i].Category == exp.Category {
				profile = &profiles[i]
			}
		}
		require.NotNil(t, profile, exp.Category)
		assert.GreaterOrEqual(t, exp.Amount, profile.Min-100)
		assert.LessOrEqual(t, exp.Amount, profile.Max)
		assert.Contains(t, paymentMethods, exp.PaymentMethod)
	}
}

func TestAuthenticate_LoginThenRegister(t *testing.T) {
	var registered atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		switch r.URL.Path {
		case "/api/auth/login":
			if !registered.Load() {
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"token": "login-token"})
		case "/api/auth/register":
			registered.Store(true)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"token": "register-token"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newAPIClient(server.URL + "/api")
	require.NoError(t, c.authenticate(context.Background(), "simdriver", "simulator-password"))
	assert.Equal(t, "register-token", c.token)

	c = newAPIClient(server.URL + "/api")
	require.NoError(t, c.authenticate(context.Background(), "simdriver", "simulator-password"))
	assert.Equal(t, "login-token", c.token)
}

func TestSendExpense(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/expenses", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

			var body ExpenseRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "FUEL", body.Category)

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": "exp-1"})
		}))
		defer server.Close()

		c := newAPIClient(server.URL + "/api")
		c.token = "tok"
		id, err := c.sendExpense(context.Background(), ExpenseRequest{CarID: "car-1", Category: "FUEL", PaymentMethod: "CARD", Date: time.Now()})
		require.NoError(t, err)
		assert.Equal(t, "exp-1", id)
	})

	t.Run("rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad", http.StatusBadRequest)
		}))
		defer server.Close()

		_, err := newAPIClient(server.URL).sendExpense(context.Background(), ExpenseRequest{})
		assert.ErrorContains(t, err, "status: 400")
	})
}

func TestSimulate_StopsOnCancel(t *testing.T) {
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "exp"})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		simulate(ctx, newAPIClient(server.URL), []*CarState{{CarID: "car-1"}}, 10*time.Millisecond, rand.New(rand.NewSource(2)))
		close(done)
	}()

	assert.Eventually(t, func() bool { return posts.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("simulate did not stop")
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("CAR_COUNT", "4")
	assert.Equal(t, 4, getEnvInt("CAR_COUNT", 2))
	t.Setenv("CAR_COUNT", "zero")
	assert.Equal(t, 2, getEnvInt("CAR_COUNT", 2))
	t.Setenv("CAR_COUNT", "0")
	assert.Equal(t, 2, getEnvInt("CAR_COUNT", 2))
}
