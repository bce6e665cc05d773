package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/moneywise/balance-ledger/internal/adapters"
	kafkaevents "github.com/moneywise/balance-ledger/internal/events/kafka"
	"github.com/moneywise/balance-ledger/internal/interfaces"
	"github.com/moneywise/balance-ledger/internal/ledger"
	"github.com/moneywise/balance-ledger/internal/models"
	"github.com/moneywise/balance-ledger/internal/storage/memory"
	"github.com/moneywise/balance-ledger/internal/storage/mysql"
	"github.com/moneywise/balance-ledger/internal/storage/postgres"
)

// recordRequest is the payload the domain handlers would send when a
// financial record with a monetary effect is created or updated.
type recordRequest struct {
	AccountID      string          `json:"account_id" validate:"required"`
	Kind           string          `json:"kind" validate:"required,oneof=income expense transfer debt receivable saving investment manual-adjustment"`
	SourceEntityID string          `json:"source_entity_id"`
	Amount         decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	FromAccount string          `json:"from_account" validate:"required"`
	ToAccount   string          `json:"to_account" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
}

func main() {
	godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	store, err := buildStore(log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise ledger store")
	}

	opts := []ledger.Option{ledger.WithLogger(log)}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher := kafkaevents.NewPublisher(strings.Split(brokers, ","))
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher))
		log.WithField("brokers", brokers).Info("kafka publisher enabled")
	}
	ledgerService := ledger.NewLedger(store, opts...)

	validate := validator.New()

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	http.HandleFunc("/records", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut:
			var req recordRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
			if err := validate.Struct(req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if req.SourceEntityID == "" {
				req.SourceEntityID = uuid.New().String()
			}

			adapter, err := adapters.ForKind(ledgerService, models.EntryKind(req.Kind))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			var balance decimal.Decimal
			if r.Method == http.MethodPost {
				balance, err = adapter.RecordCreate(r.Context(), req.AccountID, req.SourceEntityID, req.Amount)
			} else {
				balance, err = adapter.RecordUpdate(r.Context(), req.AccountID, req.SourceEntityID, req.Amount)
			}
			if err != nil {
				writeError(w, log, err)
				return
			}
			writeBalance(w, req.AccountID, req.SourceEntityID, balance)

		case http.MethodDelete:
			accountID := r.URL.Query().Get("account_id")
			kind := r.URL.Query().Get("kind")
			sourceEntityID := r.URL.Query().Get("source_entity_id")
			if accountID == "" || sourceEntityID == "" {
				http.Error(w, "account_id and source_entity_id are mandatory", http.StatusBadRequest)
				return
			}

			adapter, err := adapters.ForKind(ledgerService, models.EntryKind(kind))
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			balance, err := adapter.RecordDelete(r.Context(), accountID, sourceEntityID)
			if err != nil {
				writeError(w, log, err)
				return
			}
			writeBalance(w, accountID, sourceEntityID, balance)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	http.HandleFunc("/transfers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		tr := models.Transfer{
			ID:          r.Header.Get("Idempotency-Key"),
			FromAccount: req.FromAccount,
			ToAccount:   req.ToAccount,
			Amount:      req.Amount,
			CreatedAt:   time.Now().UTC(),
		}
		if err := ledgerService.PostTransfer(r.Context(), tr); err != nil {
			writeError(w, log, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"transfer recorded"}`))
	})

	http.HandleFunc("/accounts/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			http.Error(w, "account_id is a mandatory field", http.StatusBadRequest)
			return
		}

		balance, err := ledgerService.GetBalance(r.Context(), accountID)
		if err != nil {
			writeError(w, log, err)
			return
		}

		response := struct {
			AccountID string          `json:"account_id"`
			Balance   decimal.Decimal `json:"balance"`
		}{
			AccountID: accountID,
			Balance:   balance,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	http.HandleFunc("/ledgerEntries", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			http.Error(w, "account_id is a mandatory field", http.StatusBadRequest)
			return
		}

		entries, err := ledgerService.ActiveEntries(r.Context(), accountID)
		if err != nil {
			writeError(w, log, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("starting server")
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

// buildStore selects the storage backend from LEDGER_STORE:
// memory (default), postgres (DATABASE_URL) or mysql (MYSQL_DSN).
func buildStore(log *logrus.Logger) (interfaces.LedgerStore, error) {
	switch backend := os.Getenv("LEDGER_STORE"); backend {
	case "", "memory":
		log.Info("using in-memory ledger store")
		return memory.NewMemoryLedgerStore(), nil

	case "postgres":
		db, err := sql.Open("postgres", os.Getenv("DATABASE_URL"))
		if err != nil {
			return nil, err
		}
		store := postgres.NewPostgresLedgerStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			return nil, err
		}
		log.Info("using postgres ledger store")
		return store, nil

	case "mysql":
		db, err := gorm.Open(gormmysql.Open(os.Getenv("MYSQL_DSN")), &gorm.Config{})
		if err != nil {
			return nil, err
		}
		store, err := mysql.NewMySQLLedgerStore(db)
		if err != nil {
			return nil, err
		}
		log.Info("using mysql ledger store")
		return store, nil

	default:
		return nil, errors.New("unknown LEDGER_STORE backend: " + backend)
	}
}

func writeBalance(w http.ResponseWriter, accountID, sourceEntityID string, balance decimal.Decimal) {
	response := struct {
		AccountID      string          `json:"account_id"`
		SourceEntityID string          `json:"source_entity_id"`
		Balance        decimal.Decimal `json:"balance"`
	}{
		AccountID:      accountID,
		SourceEntityID: sourceEntityID,
		Balance:        balance,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, log *logrus.Logger, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ledger.ErrNoActiveEntry):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ledger.ErrLockTimeout):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		log.WithError(err).Error("ledger operation failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
