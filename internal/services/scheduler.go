package services

import (
	"log"
	"sync"
	"time"
)

// StatusBroadcaster receives periodic monitor status snapshots
type StatusBroadcaster interface {
	BroadcastStatus(status interface{})
}

// Scheduler periodically reports the monitor's status to live clients and the log
type Scheduler struct {
	monitor     *MonitorService
	broadcaster StatusBroadcaster
	interval    time.Duration
	ticker      *time.Ticker
	stopChan    chan bool
	mu          sync.RWMutex
	isRunning   bool
	lastReport  *MonitorStatus
}

// NewScheduler creates a status scheduler firing every interval
func NewScheduler(monitor *MonitorService, broadcaster StatusBroadcaster, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		monitor:     monitor,
		broadcaster: broadcaster,
		interval:    interval,
		stopChan:    make(chan bool),
	}
}

// Start begins the scheduler background process
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		log.Println("⚠️  Scheduler: Already running")
		return
	}

	s.ticker = time.NewTicker(s.interval)
	s.isRunning = true

	log.Printf("🕐 Scheduler: Started - reporting status every %s", s.interval)

	go s.run()
}

// Stop halts the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	s.isRunning = false
	s.mu.Unlock()

	// Report takes the lock, so signal the loop without holding it
	s.stopChan <- true

	log.Println("🛑 Scheduler: Stopped")
}

// run is the main scheduler loop
func (s *Scheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			s.Report()
		case <-s.stopChan:
			return
		}
	}
}

// Report takes a status snapshot, broadcasts it and logs a one-line summary
func (s *Scheduler) Report() MonitorStatus {
	status := s.monitor.Status()

	if s.broadcaster != nil {
		s.broadcaster.BroadcastStatus(status)
	}

	ready := 0
	for _, d := range status.Devices {
		if d.Ready {
			ready++
		}
	}

	s.mu.Lock()
	previous := s.lastReport
	s.lastReport = &status
	s.mu.Unlock()

	newAnomalies := status.AnomalyCount
	if previous != nil {
		newAnomalies -= previous.AnomalyCount
	}
	log.Printf("📊 Status: %d device(s), %d ready, %d readings, %d new anomalies",
		len(status.Devices), ready, status.ReadingCount, newAnomalies)

	return status
}

// GetLastReport returns the most recent status snapshot, nil before the first report
func (s *Scheduler) GetLastReport() *MonitorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
