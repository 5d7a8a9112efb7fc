/*
scenarios.go - Demo data loaders

PURPOSE:
  Seeds the store with a small recognizable fleet so the console and the
  driver form have something to show in dev environments. Everything goes
  through the engine, so demo data obeys the same rules as real data
  (rate snapshots, duplicate policy, lifecycle stamps).
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fleetware/driverlog/payroll"
)

type scenarioDriver struct {
	name      string
	email     string
	mileage   string // "" = system default
	detention string // "" = system default
}

type scenarioLog struct {
	driver    int // index into drivers
	truck     string
	daysAgo   int
	miles     float64
	value     float64
	detention int
	notes     string
}

type scenario struct {
	description string
	drivers     []scenarioDriver
	logs        []scenarioLog
}

var scenarios = map[string]scenario{
	"demo-fleet": {
		description: "Three drivers, two weeks of mixed logs",
		drivers: []scenarioDriver{
			{name: "Marcus Webb", email: "marcus@example.com", mileage: "0.52", detention: "20"},
			{name: "Elena Vasquez", email: "elena@example.com", mileage: "0.48"},
			{name: "Dale Hutchins", email: "dale@example.com"},
		},
		logs: []scenarioLog{
			{driver: 0, truck: "T-104", daysAgo: 1, miles: 412, value: 2, detention: 45, notes: "Detention at Rochelle DC"},
			{driver: 0, truck: "T-104", daysAgo: 2, miles: 387, value: 1.5},
			{driver: 0, truck: "T-104", daysAgo: 4, miles: 501, value: 3, detention: 90},
			{driver: 1, truck: "T-212", daysAgo: 1, miles: 298, value: 2.5},
			{driver: 1, truck: "T-212", daysAgo: 3, miles: 334, value: 1, detention: 30},
			{driver: 2, truck: "T-317", daysAgo: 2, miles: 445, value: 2},
			{driver: 2, truck: "T-317", daysAgo: 8, miles: 380, value: 2, notes: "Prior week"},
			{driver: 2, truck: "T-317", daysAgo: 9, miles: 402, value: 1.5, detention: 60},
		},
	},
	"single-driver": {
		description: "One driver, one truck, three consecutive days",
		drivers: []scenarioDriver{
			{name: "Rosa Delgado", email: "rosa@example.com", mileage: "0.50", detention: "18"},
		},
		logs: []scenarioLog{
			{driver: 0, truck: "T-101", daysAgo: 1, miles: 250, value: 1},
			{driver: 0, truck: "T-101", daysAgo: 2, miles: 310, value: 2, detention: 20},
			{driver: 0, truck: "T-101", daysAgo: 3, miles: 275, value: 0.5},
		},
	},
}

// LoadScenario seeds a named demo dataset.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sc, ok := scenarios[req.Name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario %q", req.Name), nil)
		return
	}

	created, err := h.loadScenario(r.Context(), adminActor(r), sc)
	if err != nil {
		writeDomainError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"scenario":    req.Name,
		"description": sc.description,
		"logs":        created,
	})
}

func (h *Handler) loadScenario(ctx context.Context, actor payroll.Actor, sc scenario) (int, error) {
	today := payroll.DateOf(time.Now())

	driverIDs := make([]payroll.DriverID, len(sc.drivers))
	for i, d := range sc.drivers {
		driver, err := h.Engine.CreateDriver(ctx, actor, d.name, d.email,
			parseScenarioRate(d.mileage), parseScenarioRate(d.detention))
		if err != nil {
			return 0, err
		}
		driverIDs[i] = driver.ID
	}

	created := 0
	for _, l := range sc.logs {
		result, err := h.Engine.Submit(ctx, payroll.Submission{
			DriverID:  driverIDs[l.driver],
			TruckUnit: l.truck,
			Date:      today.AddDays(-l.daysAgo),
			Quantities: payroll.Quantities{
				Miles:            decimal.NewFromFloat(l.miles),
				ValueHours:       decimal.NewFromFloat(l.value),
				DetentionMinutes: l.detention,
			},
			Notes: l.notes,
		})
		if err != nil {
			return created, err
		}
		if result.Outcome == payroll.OutcomeCreated {
			created++
		}
	}
	return created, nil
}

func parseScenarioRate(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
