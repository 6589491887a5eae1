package ingest

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Krimson/maternal-monitory/internal/config"
	"github.com/Krimson/maternal-monitory/pkg/models"
)

// Sink принимает накопленные измерения одной пациентки
type Sink interface {
	Consume(ctx context.Context, patientID string, signs []models.VitalSign) error
}

// Batcher буферизует входящие измерения по пациенткам и сбрасывает
// их в Sink по размеру или по таймеру. Невалидные измерения
// отбрасываются на входе.
type Batcher struct {
	cfg     *config.Config
	sink    Sink
	mu      sync.Mutex
	buffers map[string]*patientBuffer

	flushChan chan flushJob
	stopChan  chan struct{}

	stats struct {
		mu       sync.RWMutex
		received int64
		dropped  int64
		flushed  int64
	}
}

type patientBuffer struct {
	signs       []models.VitalSign
	lastAddedMS int64
}

type flushJob struct {
	patientID string
	signs     []models.VitalSign
}

// LogSink пишет сбрасываемые пачки в лог, используется при отладке
type LogSink struct{}

func (ls *LogSink) Consume(ctx context.Context, patientID string, signs []models.VitalSign) error {
	log.Printf("[BATCH] patient=%s points=%d", patientID, len(signs))
	return nil
}

func NewBatcher(cfg *config.Config, sink Sink) *Batcher {
	b := &Batcher{
		cfg:       cfg,
		sink:      sink,
		buffers:   make(map[string]*patientBuffer),
		flushChan: make(chan flushJob, 100),
		stopChan:  make(chan struct{}),
	}

	go b.flushWorker()
	go b.timerFlusher()

	return b
}

// Add добавляет измерение в буфер пациентки. Невалидное измерение
// отбрасывается без ошибки: поток приёма не прерывается.
func (b *Batcher) Add(vs models.VitalSign) error {
	if err := b.validate(vs); err != nil {
		b.incrementDropped()
		log.Printf("[WARN] Invalid vital sign dropped: %v", err)
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	buf, exists := b.buffers[vs.PatientID]
	if !exists {
		buf = &patientBuffer{}
		b.buffers[vs.PatientID] = buf
	}

	buf.signs = append(buf.signs, vs)
	buf.lastAddedMS = time.Now().UnixMilli()
	b.incrementReceived()

	if len(buf.signs) >= b.cfg.BatchMaxSamples {
		b.flushBuffer(vs.PatientID, buf)
	}

	return nil
}

func (b *Batcher) validate(vs models.VitalSign) error {
	if vs.PatientID == "" {
		return fmt.Errorf("empty patient_id")
	}

	if vs.Date.IsZero() {
		return fmt.Errorf("zero date")
	}

	if vs.Systolic <= 0 || vs.Diastolic <= 0 {
		return fmt.Errorf("invalid pressure: %d/%d", vs.Systolic, vs.Diastolic)
	}

	if vs.HeartRate <= 0 {
		return fmt.Errorf("invalid heart rate: %d", vs.HeartRate)
	}

	if vs.OxygenSaturation <= 0 || vs.OxygenSaturation > 100 {
		return fmt.Errorf("invalid oxygen saturation: %d", vs.OxygenSaturation)
	}

	if vs.Weight != nil && (math.IsNaN(*vs.Weight) || math.IsInf(*vs.Weight, 0) || *vs.Weight <= 0) {
		return fmt.Errorf("invalid weight: %f", *vs.Weight)
	}

	return nil
}

// flushBuffer вызывается под мютексом
func (b *Batcher) flushBuffer(patientID string, buf *patientBuffer) {
	if len(buf.signs) == 0 {
		return
	}

	signs := make([]models.VitalSign, len(buf.signs))
	copy(signs, buf.signs)
	buf.signs = buf.signs[:0]

	select {
	case b.flushChan <- flushJob{patientID: patientID, signs: signs}:
		b.incrementFlushed()
	default:
		log.Printf("[WARN] Flush channel full, batch dropped")
		b.incrementDropped()
	}
}

func (b *Batcher) flushWorker() {
	for {
		select {
		case job := <-b.flushChan:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := b.sink.Consume(ctx, job.patientID, job.signs); err != nil {
				log.Printf("[ERROR] Failed to consume batch: %v", err)
			}
			cancel()

		case <-b.stopChan:
			return
		}
	}
}

func (b *Batcher) timerFlusher() {
	ticker := time.NewTicker(time.Duration(b.cfg.FlushIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.flushOldBuffers()

		case <-b.stopChan:
			return
		}
	}
}

func (b *Batcher) flushOldBuffers() {
	now := time.Now().UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()

	for patientID, buf := range b.buffers {
		if len(buf.signs) > 0 && (now-buf.lastAddedMS) > b.cfg.FlushIntervalMS {
			b.flushBuffer(patientID, buf)
		}
	}
}

// Stop сбрасывает все буферы и останавливает воркеры
func (b *Batcher) Stop() {
	log.Printf("[INFO] Stopping batcher...")

	b.flushAllBuffers()

	for len(b.flushChan) > 0 {
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)

	select {
	case <-b.stopChan:
	default:
		close(b.stopChan)
	}

	b.logStats()
}

func (b *Batcher) flushAllBuffers() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for patientID, buf := range b.buffers {
		if len(buf.signs) > 0 {
			b.flushBuffer(patientID, buf)
		}
	}
}

// Методы для работы со статистикой
func (b *Batcher) incrementReceived() {
	b.stats.mu.Lock()
	b.stats.received++
	b.stats.mu.Unlock()
}

func (b *Batcher) incrementDropped() {
	b.stats.mu.Lock()
	b.stats.dropped++
	b.stats.mu.Unlock()
}

func (b *Batcher) incrementFlushed() {
	b.stats.mu.Lock()
	b.stats.flushed++
	b.stats.mu.Unlock()
}

func (b *Batcher) logStats() {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	log.Printf("[STATS] received=%d dropped=%d flushed=%d",
		b.stats.received,
		b.stats.dropped,
		b.stats.flushed)
}

func (b *Batcher) GetStats() (received, dropped, flushed int64) {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	return b.stats.received, b.stats.dropped, b.stats.flushed
}
