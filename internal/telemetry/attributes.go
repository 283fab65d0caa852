// SPDX-License-Identifier: MIT

// Package telemetry provides OpenTelemetry tracing utilities for the zonewatch daemon.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Recording attributes
	RecordingZoneKey       = "recording.zone"
	RecordingSessionKey    = "recording.session_id"
	RecordingDeviceKey     = "recording.device"
	RecordingCodecKey      = "recording.codec"
	RecordingResolutionKey = "recording.resolution"
	RecordingOutputKey     = "recording.output"
	RecordingOutcomeKey    = "recording.outcome"

	// Sensor attributes
	SensorEventTypeKey = "sensor.event_type"
	SensorZoneKey      = "sensor.zone"

	// Transport attributes
	TransportAddrKey    = "transport.addr"
	TransportAttemptKey = "transport.attempt"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// RecordingAttributes creates recording-session span attributes.
func RecordingAttributes(zone, sessionID, device, codec string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if zone != "" {
		attrs = append(attrs, attribute.String(RecordingZoneKey, zone))
	}
	if sessionID != "" {
		attrs = append(attrs, attribute.String(RecordingSessionKey, sessionID))
	}
	if device != "" {
		attrs = append(attrs, attribute.String(RecordingDeviceKey, device))
	}
	if codec != "" {
		attrs = append(attrs, attribute.String(RecordingCodecKey, codec))
	}
	return attrs
}

// SensorAttributes creates sensor-event span attributes.
func SensorAttributes(eventType, zone string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SensorEventTypeKey, eventType),
	}
	if zone != "" {
		attrs = append(attrs, attribute.String(SensorZoneKey, zone))
	}
	return attrs
}

// TransportAttributes creates sensor-transport span attributes.
func TransportAttributes(addr string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TransportAddrKey, addr),
		attribute.Int(TransportAttemptKey, attempt),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
