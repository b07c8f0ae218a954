package clipboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.design/x/clipboard"
)

const (
	// AnnotationPrefix marks annotations that came from the clipboard.
	AnnotationPrefix = "clipboard: "
	// Overlay'e sığsın diye kırpılan uzunluk (rune)
	MaxAnnotationLen = 120
)

// Manager: watches the text clipboard and reports new local copies.
type Manager struct {
	mu       sync.Mutex
	lastText string
	callback func(text string) // Pano değişince burayı tetikleyeceğiz
	log      *zap.Logger

	watch func(ctx context.Context) <-chan []byte
	write func(text string)
}

// Init: Pano servisini sistem seviyesinde başlatır (App.go'da çağrılmalı)
func Init() error {
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("pano sistemi başlatılamadı: %w", err)
	}
	return nil
}

// NewManager: Yeni yönetici oluşturur.
func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log: log.Named("clipboard"),
		watch: func(ctx context.Context) <-chan []byte {
			// Sadece metin formatını izliyoruz
			return clipboard.Watch(ctx, clipboard.FmtText)
		},
		write: func(text string) {
			clipboard.Write(clipboard.FmtText, []byte(text))
		},
	}
}

// SetCallback: Pano değiştiğinde çağrılacak fonksiyonu ayarlar.
func (m *Manager) SetCallback(cb func(text string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

// StartWatcher: panoyu ctx iptal edilene kadar dinler.
func (m *Manager) StartWatcher(ctx context.Context) {
	ch := m.watch(ctx)
	go func() {
		for data := range ch {
			m.handle(string(data))
		}
	}()
}

func (m *Manager) handle(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	m.mu.Lock()
	// ECHO CANCELLATION:
	// Panodaki metin en son bizim yazdığımız metinse tekrar bildirme.
	if text == m.lastText {
		m.mu.Unlock()
		return
	}
	m.lastText = text
	cb := m.callback
	m.mu.Unlock()

	if cb != nil {
		m.log.Debug("clipboard changed", zap.Int("bytes", len(text)))
		cb(text)
	}
}

// Write: metni yerel panoya yazar, watcher bunu yeni kopya saymaz.
func (m *Manager) Write(text string) {
	m.mu.Lock()
	// Döngüyü kırmak için: "Bunu ben yazdım, tekrar okursan yoksay"
	m.lastText = text
	m.mu.Unlock()

	m.write(text)
}

// Annotation turns copied text into a single overlay line.
func Annotation(text string) string {
	line := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(line) > MaxAnnotationLen {
		r := []rune(line)
		line = string(r[:MaxAnnotationLen-1]) + "…"
	}
	return AnnotationPrefix + line
}
