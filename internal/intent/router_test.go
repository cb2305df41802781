package intent

import (
	"testing"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

func TestRouter_Classify(t *testing.T) {
	r := NewRouter()

	tests := []struct {
		name      string
		utterance string
		want      domain.Command
		wantOK    bool
	}{
		{"recipients", "Кому платили больше всего?", domain.CommandRecipients, true},
		{"recipients beats analytics", "анализ получателей за месяц", domain.CommandRecipients, true},
		{"supplier beats analytics", "Анализ поставщика Интигам", domain.CommandSuppliers, true},
		{"supplier history beats history", "история с Балтикой", domain.CommandSuppliers, true},
		{"analytics", "Покажи траты за неделю", domain.CommandAnalytics, true},
		{"analytics yo spelling", "отчёт за декабрь", domain.CommandAnalytics, true},
		{"search", "Найди такси", domain.CommandSearch, true},
		{"categories", "расходы по категориям", domain.CommandCategories, true},
		{"history", "Последние операции", domain.CommandHistory, true},
		{"backup", "сделай бэкап", domain.CommandBackup, true},
		{"backup latin", "BACKUP", domain.CommandBackup, true},
		{"transaction", "Дал Петрову 40000 за работу", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Classify(tt.utterance)
			if ok != tt.wantOK {
				t.Fatalf("Classify(%q) ok = %v, want %v", tt.utterance, ok, tt.wantOK)
			}
			if got.Command != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.utterance, got.Command, tt.want)
			}
			if ok && got.Params != tt.utterance {
				t.Errorf("Classify(%q) params = %q, want original utterance", tt.utterance, got.Params)
			}
		})
	}
}

// Every keyword of a group must win over every keyword of all lower groups,
// wherever the lower keyword appears in the text.
func TestRouter_PriorityIsTotal(t *testing.T) {
	r := NewRouter()
	for i, high := range DefaultRules {
		for _, low := range DefaultRules[i+1:] {
			for _, hk := range high.Keywords {
				for _, lk := range low.Keywords {
					for _, text := range []string{lk + ". " + hk, hk + ". " + lk} {
						got, ok := r.Classify(text)
						if !ok {
							t.Fatalf("Classify(%q) did not match", text)
						}
						if got.Command != high.Command {
							t.Errorf("Classify(%q) = %v, want %v", text, got.Command, high.Command)
						}
					}
				}
			}
		}
	}
}

func TestNewRouter_CustomRules(t *testing.T) {
	r := NewRouter(Rule{Command: domain.CommandBackup, Keywords: []string{"выгрузка"}})
	if _, ok := r.Classify("анализ"); ok {
		t.Error("custom router should not know default keywords")
	}
	if got, ok := r.Classify("Выгрузка"); !ok || got.Command != domain.CommandBackup {
		t.Errorf("Classify(Выгрузка) = %v, %v", got, ok)
	}
}
