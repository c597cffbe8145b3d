package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"flightcore/internal/autopilot"
)

type confirmRequest struct {
	Confirm bool `json:"confirm"`
}

func registerAHRS(mux *http.ServeMux, d Deps) {
	mux.HandleFunc("/api/attitude", func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, attitudeFromSnapshot(d.AHRS.Snapshot()))
	})

	if d.Attitude != nil {
		mux.HandleFunc("/api/attitude/stream", func(w http.ResponseWriter, r *http.Request) {
			if !allowMethod(w, r, http.MethodGet) {
				return
			}
			streamAttitude(w, r, d.Attitude)
		})
	}

	mux.HandleFunc("/api/ahrs/zero-drift", func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		if err := d.AHRS.ZeroDrift(ctx); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeOK(w)
	})

	if d.YawRef != nil {
		mux.HandleFunc("/api/ahrs/yaw-reference", func(w http.ResponseWriter, r *http.Request) {
			if !allowMethod(w, r, http.MethodPost) {
				return
			}
			var req struct {
				YawDeg *float64 `json:"yaw_deg"`
			}
			if !decodeJSON(w, r, &req) {
				return
			}
			if req.YawDeg == nil {
				http.Error(w, "yaw_deg is required", http.StatusBadRequest)
				return
			}
			d.YawRef.Set(*req.YawDeg)
			writeOK(w)
		})
	}
}

func streamAttitude(w http.ResponseWriter, r *http.Request, b *AttitudeBroadcaster) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")

	id, ch := b.Subscribe(4)
	defer b.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case att, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, "attitude", att); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b)
	return err
}

// command registers a POST endpoint for a supervisor command. With confirm
// set the request body must carry {"confirm":true}.
func command(mux *http.ServeMux, path string, confirm bool, fn func() error) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		if confirm {
			var req confirmRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if !req.Confirm {
				http.Error(w, "confirm required", http.StatusBadRequest)
				return
			}
		}
		if err := fn(); err != nil {
			writeCommandErr(w, err)
			return
		}
		writeOK(w)
	})
}

func noErr(fn func()) func() error {
	return func() error { fn(); return nil }
}

func registerCommands(mux *http.ServeMux, ap Autopilot) {
	command(mux, "/api/command/takeoff", false, ap.TriggerAutoTakeoff)
	command(mux, "/api/command/land", false, ap.TriggerAutoLanding)
	command(mux, "/api/command/halt", false, noErr(ap.RequestHalt))
	command(mux, "/api/command/arm", true, noErr(ap.Arm))
	command(mux, "/api/command/disarm", true, noErr(ap.Disarm))
	command(mux, "/api/command/lock", true, noErr(ap.LockMotor))
	command(mux, "/api/command/unlock", true, noErr(ap.UnlockMotor))
}

type WaypointJSON struct {
	Position     [3]float64 `json:"position"`
	HeadingDeg   float64    `json:"heading_deg"`
	DwellSec     float64    `json:"dwell_sec"`
	TouchRadiusM float64    `json:"touch_radius_m,omitempty"`
	Latitude     int32      `json:"latitude_e7,omitempty"`
	Longitude    int32      `json:"longitude_e7,omitempty"`
	Altitude     float32    `json:"altitude,omitempty"`
	Command      uint16     `json:"command,omitempty"`
}

func (wj WaypointJSON) waypoint() autopilot.Waypoint {
	return autopilot.Waypoint{
		Position:    wj.Position,
		HeadingDeg:  wj.HeadingDeg,
		Dwell:       time.Duration(wj.DwellSec * float64(time.Second)),
		TouchRadius: wj.TouchRadiusM,
		Latitude:    wj.Latitude,
		Longitude:   wj.Longitude,
		Altitude:    wj.Altitude,
		Command:     wj.Command,
	}
}

func waypointJSON(wp autopilot.Waypoint) WaypointJSON {
	return WaypointJSON{
		Position:     wp.Position,
		HeadingDeg:   wp.HeadingDeg,
		DwellSec:     wp.Dwell.Seconds(),
		TouchRadiusM: wp.TouchRadius,
		Latitude:     wp.Latitude,
		Longitude:    wp.Longitude,
		Altitude:     wp.Altitude,
		Command:      wp.Command,
	}
}

func registerMission(mux *http.ServeMux, ap Autopilot) {
	mux.HandleFunc("/api/mission/waypoints", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			wps := ap.State().Waypoints()
			out := make([]WaypointJSON, 0, len(wps))
			for _, wp := range wps {
				out = append(out, waypointJSON(wp))
			}
			writeJSON(w, http.StatusOK, struct {
				Waypoints []WaypointJSON          `json:"waypoints"`
				Status    autopilot.MissionStatus `json:"status"`
			}{out, ap.State().Mission()})
		case http.MethodPost:
			var req WaypointJSON
			if !decodeJSON(w, r, &req) {
				return
			}
			if err := ap.AddWaypoint(req.waypoint()); err != nil {
				writeCommandErr(w, err)
				return
			}
			writeOK(w)
		default:
			w.Header().Set("Allow", "GET, POST")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/mission/start", func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			Loop bool `json:"loop"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := ap.StartMission(req.Loop); err != nil {
			writeCommandErr(w, err)
			return
		}
		writeOK(w)
	})
	command(mux, "/api/mission/loop", false, func() error { return ap.StartMission(true) })
	command(mux, "/api/mission/halt", false, ap.HaltMission)
	command(mux, "/api/mission/resume", false, ap.ResumeMission)
	command(mux, "/api/mission/clear", false, ap.ClearWaypoints)

	mux.HandleFunc("/api/mission/goto", func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			Position *[3]float64 `json:"position"`
			ChangeZ  bool        `json:"change_z"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Position == nil {
			http.Error(w, "position is required", http.StatusBadRequest)
			return
		}
		if err := ap.GotoPosition(*req.Position, req.ChangeZ); err != nil {
			writeCommandErr(w, err)
			return
		}
		writeOK(w)
	})
}

type SegmentJSON struct {
	X          [8]float64 `json:"x"`
	Y          [8]float64 `json:"y"`
	Z          [8]float64 `json:"z"`
	VX         [7]float64 `json:"vx"`
	VY         [7]float64 `json:"vy"`
	VZ         [7]float64 `json:"vz"`
	AX         [7]float64 `json:"ax"`
	AY         [7]float64 `json:"ay"`
	AZ         [7]float64 `json:"az"`
	Yaw        [4]float64 `json:"yaw"`
	YawRate    [3]float64 `json:"yaw_rate"`
	FlightTime float64    `json:"flight_time"`
}

func (s SegmentJSON) segment() autopilot.TrajectorySegment {
	return autopilot.TrajectorySegment{
		X: s.X, Y: s.Y, Z: s.Z,
		VX: s.VX, VY: s.VY, VZ: s.VZ,
		AX: s.AX, AY: s.AY, AZ: s.AZ,
		Yaw: s.Yaw, YawRate: s.YawRate,
		FlightTime: s.FlightTime,
	}
}

func registerTrajectory(mux *http.ServeMux, ap Autopilot) {
	mux.HandleFunc("/api/trajectory/segments", func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		var req SegmentJSON
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := ap.AddTrajectorySegment(req.segment()); err != nil {
			writeCommandErr(w, err)
			return
		}
		writeOK(w)
	})

	mux.HandleFunc("/api/trajectory/start", func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodPost) {
			return
		}
		var req struct {
			Loop bool `json:"loop"`
			Z    bool `json:"z"`
			Yaw  bool `json:"yaw"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := ap.StartTrajectory(req.Loop, req.Z, req.Yaw); err != nil {
			writeCommandErr(w, err)
			return
		}
		writeOK(w)
	})
	command(mux, "/api/trajectory/clear", false, ap.ClearTrajectory)
}
