package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	nlogger "github.com/neutron-org/neutron-logger"
	"go.uber.org/zap"

	"github.com/parity-sale/relay-queue/internal/relay"
)

const (
	ServerContext     = "http"
	MonitoringContext = "monitoring"
)

func Run(ctx context.Context, logRegistry *nlogger.Registry, store relay.QueueStore, listenAddr string) error {
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           Router(logRegistry, store),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger := logRegistry.Get(ServerContext)
	errch := make(chan error, 1)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to serve http", zap.Error(err))
			errch <- err
		}
	}()

	select {
	case err := <-errch:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down the api http")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown api http gracefully", zap.Error(err))
		return nil
	}

	logger.Info("api http shut down successfully")
	return nil
}

func Router(logRegistry *nlogger.Registry, store relay.QueueStore) *mux.Router {
	logger := logRegistry.Get(ServerContext)

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc(PendingResource, pending(logger, store)).Methods(http.MethodGet)
	router.HandleFunc(CancelResource, cancelPending(logger, store)).Methods(http.MethodDelete)
	router.HandleFunc(OutcomeResource, outcome(logger, store)).Methods(http.MethodGet)
	router.Handle(PrometheusMetrics, NewPromWrapper(logRegistry.Get(MonitoringContext), store))
	return router
}

func pending(logger *zap.Logger, store relay.QueueStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := relay.NormalizeAddress(mux.Vars(r)["address"])

		entry, err := store.Get(r.Context(), address)
		if err != nil {
			logger.Error("failed to get pending entry", zap.String("address", address), zap.Error(err))
			writeError(logger, w, http.StatusInternalServerError, "Error processing request")
			return
		}

		writeJSON(logger, w, http.StatusOK, PendingResponse{Pending: newPendingView(entry)})
	}
}

func outcome(logger *zap.Logger, store relay.QueueStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		address := relay.NormalizeAddress(vars["address"])

		res, err := store.GetOutcome(r.Context(), address, vars["nonce"])
		if err != nil {
			logger.Error("failed to get outcome", zap.String("address", address), zap.String("nonce", vars["nonce"]), zap.Error(err))
			writeError(logger, w, http.StatusInternalServerError, "Error processing request")
			return
		}

		writeJSON(logger, w, http.StatusOK, OutcomeResponse{Outcome: newOutcomeView(res)})
	}
}

// cancelPending withdraws the pending transaction of address. The signature must be a
// personal_sign of CancelMessage(hash) by address.
func cancelPending(logger *zap.Logger, store relay.QueueStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		address := relay.NormalizeAddress(vars["address"])

		entry, err := store.Get(r.Context(), address)
		if err != nil {
			logger.Error("failed to get pending entry", zap.String("address", address), zap.Error(err))
			writeError(logger, w, http.StatusInternalServerError, "Error processing request")
			return
		}
		if entry == nil || entry.TxHash == "" {
			writeError(logger, w, http.StatusBadRequest, "No pending transaction to delete")
			return
		}

		if err := verifySignature(address, CancelMessage(entry.TxHash), vars["signature"]); err != nil {
			writeError(logger, w, http.StatusBadRequest, err.Error())
			return
		}

		if err := relay.CancelPending(r.Context(), store, address, entry.TxHash); err != nil {
			switch {
			case errors.Is(err, relay.ErrNoPendingEntry):
				writeError(logger, w, http.StatusBadRequest, "No pending transaction to delete")
				return
			case errors.Is(err, relay.ErrEntryReplaced):
				writeError(logger, w, http.StatusConflict, "Pending transaction was replaced, sign the new one")
				return
			}
			logger.Error("failed to cancel pending entry", zap.String("address", address), zap.Error(err))
			writeError(logger, w, http.StatusInternalServerError, "Error processing request")
			return
		}

		logger.Info("pending transaction cancelled by user", zap.String("address", address), zap.String("hash", entry.TxHash))
		writeJSON(logger, w, http.StatusOK, ResultResponse{Result: "ok"})
	}
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(body); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, message string) {
	writeJSON(logger, w, status, ErrorResponse{Error: message})
}
