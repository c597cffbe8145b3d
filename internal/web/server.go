package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"flightcore/internal/ahrs"
	"flightcore/internal/autopilot"
)

// AHRSController exposes the estimator to the API. Implementations must be
// safe for concurrent use.
type AHRSController interface {
	Snapshot() ahrs.Snapshot
	ZeroDrift(ctx context.Context) error
}

// Autopilot is the supervisor command surface.
type Autopilot interface {
	State() autopilot.View

	RequestHalt()
	TriggerAutoTakeoff() error
	TriggerAutoLanding() error
	Arm()
	Disarm()
	LockMotor()
	UnlockMotor()

	AddWaypoint(wp autopilot.Waypoint) error
	StartMission(loop bool) error
	HaltMission() error
	ResumeMission() error
	ClearWaypoints() error
	GotoPosition(pos [3]float64, changeZ bool) error

	AddTrajectorySegment(seg autopilot.TrajectorySegment) error
	StartTrajectory(loop, zTraj, yawTraj bool) error
	ClearTrajectory() error
}

type YawSetter interface {
	Set(yawDeg float64)
}

type StickSetter interface {
	Set(rollDeg, pitchDeg float64)
}

// Deps wires the handler. Nil members disable their endpoints.
type Deps struct {
	Status    *Status
	Logs      *LogBuffer
	Attitude  *AttitudeBroadcaster
	AHRS      AHRSController
	Autopilot Autopilot
	YawRef    YawSetter
	Stick     StickSetter
}

func Handler(d Deps) http.Handler {
	mux := http.NewServeMux()

	if d.Status != nil {
		mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
			if !allowMethod(w, r, http.MethodGet) {
				return
			}
			writeJSON(w, http.StatusOK, d.Status.Snapshot(time.Now().UTC()))
		})
	}
	if d.Logs != nil {
		mux.Handle("/api/logs", d.Logs.Handler())
	}
	if d.AHRS != nil {
		registerAHRS(mux, d)
	}
	if d.Autopilot != nil {
		registerCommands(mux, d.Autopilot)
		registerMission(mux, d.Autopilot)
		registerTrajectory(mux, d.Autopilot)
	}
	if d.Stick != nil {
		mux.HandleFunc("/api/pilot/stick", func(w http.ResponseWriter, r *http.Request) {
			if !allowMethod(w, r, http.MethodPost) {
				return
			}
			var req struct {
				RollDeg  float64 `json:"roll_deg"`
				PitchDeg float64 `json:"pitch_deg"`
			}
			if !decodeJSON(w, r, &req) {
				return
			}
			d.Stick.Set(req.RollDeg, req.PitchDeg)
			writeOK(w)
		})
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>flightcore</title></head><body>")
		_, _ = fmt.Fprint(w, "<h1>flightcore</h1><p>See <a href=\"/api/status\">/api/status</a>.</p></body></html>")
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte("{\"ok\":true}\n"))
}

// decodeJSON reads a small JSON body. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeCommandErr maps a rejected command to 409 and malformed input to 400.
func writeCommandErr(w http.ResponseWriter, err error) {
	if errors.Is(err, autopilot.ErrInvalidSegment) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusConflict)
}
