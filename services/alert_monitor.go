package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-booking/models"
	"github.com/yeremiapane/restaurant-booking/utils"
)

// AlertMonitor periodically recomputes the stock alerts and publishes a
// snapshot whenever the set of alerting items or their priorities changes.
type AlertMonitor struct {
	Ledger    *Ledger
	Publisher Publisher
	Interval  time.Duration
	StopChan  chan struct{}

	stopOnce    sync.Once
	mu          sync.Mutex
	fingerprint string
}

func NewAlertMonitor(ledger *Ledger, publisher Publisher, interval time.Duration) *AlertMonitor {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &AlertMonitor{
		Ledger:    ledger,
		Publisher: publisher,
		Interval:  interval,
		StopChan:  make(chan struct{}),
	}
}

func (am *AlertMonitor) Start() {
	go func() {
		ticker := time.NewTicker(am.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				am.Scan(context.Background())
			case <-am.StopChan:
				return
			}
		}
	}()
	utils.InfoLogger.WithField("interval", am.Interval.String()).Info("Stock alert monitor started")
}

func (am *AlertMonitor) Stop() {
	am.stopOnce.Do(func() { close(am.StopChan) })
}

// Scan runs one pass and reports whether a snapshot was published.
func (am *AlertMonitor) Scan(ctx context.Context) bool {
	alerts, err := am.Ledger.ListAlerts(ctx)
	if err != nil {
		utils.ErrorLogger.Errorf("Error scanning stock alerts: %v", err)
		return false
	}

	fp := alertFingerprint(alerts)
	am.mu.Lock()
	changed := fp != am.fingerprint
	am.fingerprint = fp
	am.mu.Unlock()

	if !changed {
		return false
	}

	utils.InfoLogger.WithFields(logrus.Fields{"alerts": len(alerts)}).Info("Stock alerts changed")
	am.Publisher.Publish(ctx, newEvent(EventAlertsSnapshot, "inventory", alerts))
	return true
}

func alertFingerprint(alerts []models.StockAlert) string {
	parts := make([]string, len(alerts))
	for i, a := range alerts {
		parts[i] = a.InventoryItemID + ":" + string(a.Priority)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
