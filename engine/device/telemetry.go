// Package device interprets raw device telemetry (battery, network,
// motion, form factor) into resource constraints and composition
// adjustments.
package device

import (
	"time"
)

// ConnectionType is the reported network connection.
type ConnectionType string

const (
	ConnWifi     ConnectionType = "wifi"
	Conn5G       ConnectionType = "5g"
	Conn4G       ConnectionType = "4g"
	Conn3G       ConnectionType = "3g"
	ConnEthernet ConnectionType = "ethernet"
	ConnOffline  ConnectionType = "offline"
	ConnUnknown  ConnectionType = "unknown"
)

// BatteryState is the reported charging state.
type BatteryState string

const (
	BatteryCharging    BatteryState = "charging"
	BatteryDischarging BatteryState = "discharging"
	BatteryFull        BatteryState = "full"
	BatteryNotCharging BatteryState = "not_charging"
	BatteryUnknown     BatteryState = "unknown"
)

// KineticState is the user's reported motion state.
type KineticState string

const (
	KineticStationary KineticState = "stationary"
	KineticWalking    KineticState = "walking"
	KineticRunning    KineticState = "running"
	KineticCycling    KineticState = "cycling"
	KineticDriving    KineticState = "driving"
	KineticInTransit  KineticState = "in_transit"
	KineticUnknown    KineticState = "unknown"
)

// DeviceType is the reported form factor.
type DeviceType string

const (
	DeviceSmartphone DeviceType = "smartphone"
	DeviceTablet     DeviceType = "tablet"
	DeviceLaptop     DeviceType = "laptop"
	DeviceDesktop    DeviceType = "desktop"
	DeviceWearable   DeviceType = "wearable"
	DeviceIoT        DeviceType = "iot"
	DeviceUnknown    DeviceType = "unknown"
)

// Constraint grades how resource-limited the device currently is.
type Constraint string

const (
	ConstraintNone     Constraint = "none"
	ConstraintLow      Constraint = "low"
	ConstraintMedium   Constraint = "medium"
	ConstraintHigh     Constraint = "high"
	ConstraintCritical Constraint = "critical"
)

// Battery is the battery portion of the telemetry.
type Battery struct {
	Level              float64 // 0.0 - 1.0
	State              BatteryState
	IsCharging         bool
	TimeToEmptyMinutes *int
	TemperatureCelsius *float64
}

// IsLow reports a battery level under 20%.
func (b Battery) IsLow() bool { return b.Level < 0.2 }

// IsCritical reports a battery level under 10%.
func (b Battery) IsCritical() bool { return b.Level < 0.1 }

// Network is the connectivity portion of the telemetry.
type Network struct {
	ConnectionType ConnectionType
	IsMetered      bool
	SignalStrength *float64
	BandwidthMbps  *float64
	LatencyMillis  *float64
	IsRoaming      bool
}

// IsConstrained reports a slow, metered, or absent connection.
func (n Network) IsConstrained() bool {
	if n.ConnectionType == Conn3G || n.ConnectionType == ConnOffline {
		return true
	}
	if n.IsMetered {
		return true
	}
	return n.BandwidthMbps != nil && *n.BandwidthMbps < 1.0
}

// IsOffline reports no connectivity.
func (n Network) IsOffline() bool { return n.ConnectionType == ConnOffline }

// Kinetic is the motion portion of the telemetry.
type Kinetic struct {
	State      KineticState
	Confidence float64
	SpeedMps   *float64
}

// IsMoving reports any non-stationary state.
func (k Kinetic) IsMoving() bool {
	switch k.State {
	case KineticWalking, KineticRunning, KineticCycling, KineticDriving, KineticInTransit:
		return true
	}
	return false
}

// IsHighSpeed reports driving or fast transit.
func (k Kinetic) IsHighSpeed() bool {
	if k.State == KineticDriving || k.State == KineticInTransit {
		return true
	}
	return k.SpeedMps != nil && *k.SpeedMps > 10
}

// Info is the device-identity portion of the telemetry.
type Info struct {
	DeviceType   DeviceType
	OS           string
	ScreenWidth  *int
	ScreenHeight *int
}

// Telemetry is one complete device telemetry sample.
type Telemetry struct {
	Battery   Battery
	Network   Network
	Kinetic   Kinetic
	Device    Info
	Timestamp time.Time
}

// OverallConstraint folds the individual signals into the most severe
// applicable constraint level.
func (t Telemetry) OverallConstraint() Constraint {
	constraints := []Constraint{}

	if t.Battery.IsCritical() {
		constraints = append(constraints, ConstraintCritical)
	} else if t.Battery.IsLow() && !t.Battery.IsCharging {
		constraints = append(constraints, ConstraintHigh)
	}

	if t.Network.IsOffline() {
		constraints = append(constraints, ConstraintCritical)
	} else if t.Network.IsConstrained() {
		constraints = append(constraints, ConstraintMedium)
	}

	// A moving user has less screen time.
	if t.Kinetic.IsHighSpeed() {
		constraints = append(constraints, ConstraintMedium)
	} else if t.Kinetic.IsMoving() {
		constraints = append(constraints, ConstraintLow)
	}

	if len(constraints) == 0 {
		return ConstraintNone
	}
	for _, level := range []Constraint{ConstraintCritical, ConstraintHigh, ConstraintMedium, ConstraintLow} {
		for _, c := range constraints {
			if c == level {
				return level
			}
		}
	}
	return ConstraintNone
}

// FromMap parses a raw telemetry payload. Unknown enum values fall
// back to the unknown variants instead of failing.
func FromMap(data map[string]any) *Telemetry {
	if data == nil {
		return nil
	}

	t := &Telemetry{
		Battery: Battery{Level: 1.0, State: BatteryUnknown},
		Network: Network{ConnectionType: ConnUnknown},
		Kinetic: Kinetic{State: KineticUnknown},
		Device:  Info{DeviceType: DeviceUnknown},
	}

	if battery, ok := data["battery"].(map[string]any); ok {
		if level, ok := asFloat(battery["level"]); ok {
			t.Battery.Level = level
		}
		t.Battery.State = batteryState(asString(battery["state"]))
		t.Battery.IsCharging, _ = battery["is_charging"].(bool)
		if minutes, ok := asFloat(battery["time_to_empty_minutes"]); ok {
			m := int(minutes)
			t.Battery.TimeToEmptyMinutes = &m
		}
		if temp, ok := asFloat(battery["temperature_celsius"]); ok {
			t.Battery.TemperatureCelsius = &temp
		}
	}

	if network, ok := data["network"].(map[string]any); ok {
		t.Network.ConnectionType = connectionType(asString(network["connection_type"]))
		t.Network.IsMetered, _ = network["is_metered"].(bool)
		t.Network.IsRoaming, _ = network["is_roaming"].(bool)
		if signal, ok := asFloat(network["signal_strength"]); ok {
			t.Network.SignalStrength = &signal
		}
		if bandwidth, ok := asFloat(network["bandwidth_mbps"]); ok {
			t.Network.BandwidthMbps = &bandwidth
		}
		if latency, ok := asFloat(network["latency_ms"]); ok {
			t.Network.LatencyMillis = &latency
		}
	}

	if kinetic, ok := data["kinetic"].(map[string]any); ok {
		t.Kinetic.State = kineticState(asString(kinetic["state"]))
		if confidence, ok := asFloat(kinetic["confidence"]); ok {
			t.Kinetic.Confidence = confidence
		}
		if speed, ok := asFloat(kinetic["speed_mps"]); ok {
			t.Kinetic.SpeedMps = &speed
		}
	}

	if info, ok := data["device"].(map[string]any); ok {
		t.Device.DeviceType = deviceType(asString(info["device_type"]))
		t.Device.OS = asString(info["os"])
		if width, ok := asFloat(info["screen_width"]); ok {
			w := int(width)
			t.Device.ScreenWidth = &w
		}
		if height, ok := asFloat(info["screen_height"]); ok {
			h := int(height)
			t.Device.ScreenHeight = &h
		}
	}

	if ts := asString(data["timestamp"]); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			t.Timestamp = parsed
		}
	}

	return t
}

// ToMap renders the telemetry for responses and persistence.
func (t *Telemetry) ToMap() map[string]any {
	return map[string]any{
		"battery": map[string]any{
			"level":       t.Battery.Level,
			"state":       string(t.Battery.State),
			"is_charging": t.Battery.IsCharging,
		},
		"network": map[string]any{
			"connection_type": string(t.Network.ConnectionType),
			"is_metered":      t.Network.IsMetered,
		},
		"kinetic": map[string]any{
			"state": string(t.Kinetic.State),
		},
		"device": map[string]any{
			"device_type": string(t.Device.DeviceType),
			"os":          t.Device.OS,
		},
		"overall_constraint": string(t.OverallConstraint()),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func batteryState(s string) BatteryState {
	switch BatteryState(s) {
	case BatteryCharging, BatteryDischarging, BatteryFull, BatteryNotCharging:
		return BatteryState(s)
	}
	return BatteryUnknown
}

func connectionType(s string) ConnectionType {
	switch ConnectionType(s) {
	case ConnWifi, Conn5G, Conn4G, Conn3G, ConnEthernet, ConnOffline:
		return ConnectionType(s)
	}
	return ConnUnknown
}

func kineticState(s string) KineticState {
	switch KineticState(s) {
	case KineticStationary, KineticWalking, KineticRunning, KineticCycling, KineticDriving, KineticInTransit:
		return KineticState(s)
	}
	return KineticUnknown
}

func deviceType(s string) DeviceType {
	switch DeviceType(s) {
	case DeviceSmartphone, DeviceTablet, DeviceLaptop, DeviceDesktop, DeviceWearable, DeviceIoT:
		return DeviceType(s)
	}
	return DeviceUnknown
}
