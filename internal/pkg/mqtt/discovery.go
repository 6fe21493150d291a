package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
)

// Message is one retained or transient publish
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Topics are the roots for state/command topics and Home Assistant
// discovery
type Topics struct {
	Prefix    string
	Discovery string
}

func (tp Topics) availability() string {
	return tp.Prefix + "/status"
}

func (tp Topics) state(node, object string) string {
	return fmt.Sprintf("%s/%s/%s/state", tp.Prefix, node, object)
}

func (tp Topics) command(node, object string) string {
	return fmt.Sprintf("%s/%s/%s/set", tp.Prefix, node, object)
}

func (tp Topics) commands() string {
	return tp.Prefix + "/+/+/set"
}

func (tp Topics) image(node string) string {
	return fmt.Sprintf("%s/%s/image", tp.Prefix, node)
}

func (tp Topics) config(component, node, object string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", tp.Discovery, component, node, object)
}

// parseCommand splits <prefix>/<node>/<object>/set
func (tp Topics) parseCommand(topic string) (node, object string, ok bool) {
	rest := strings.TrimPrefix(topic, tp.Prefix+"/")
	if rest == topic {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// NodeID is the MQTT-safe form of a canonical ID
func NodeID(t *accessory.Table) string {
	return strings.ToLower(strings.ReplaceAll(t.ID, ":", "_"))
}

const (
	componentAlarm        = "alarm_control_panel"
	componentBinarySensor = "binary_sensor"
	componentSensor       = "sensor"
	componentSwitch       = "switch"
	componentCamera       = "camera"
)

// entity is one Home Assistant entity backed by a characteristic
type entity struct {
	component string
	object    string
	name      string
	id        accessory.Characteristic
	extra     map[string]interface{}
}

var networkEntities = []entity{
	{componentAlarm, "alarm", "", accessory.SecuritySystemCurrentState, map[string]interface{}{
		"code_arm_required":  false,
		"supported_features": []string{"arm_home", "arm_away"},
	}},
	{componentSwitch, "occupied", "Occupied", accessory.OccupiedOn, nil},
}

var cameraEntities = []entity{
	{componentBinarySensor, "motion", "Motion", accessory.MotionDetected, map[string]interface{}{
		"device_class": "motion",
	}},
	{componentSensor, "battery", "Battery", accessory.BatteryLevel, map[string]interface{}{
		"device_class":        "battery",
		"unit_of_measurement": "%",
		"state_class":         "measurement",
	}},
	{componentBinarySensor, "battery_low", "Battery Low", accessory.StatusLowBattery, map[string]interface{}{
		"device_class": "battery",
	}},
	{componentSensor, "temperature", "Temperature", accessory.CurrentTemperature, map[string]interface{}{
		"device_class":        "temperature",
		"unit_of_measurement": "°C",
		"state_class":         "measurement",
	}},
	{componentSensor, "wifi", "Wifi Strength", accessory.WifiStrength, map[string]interface{}{
		"entity_category": "diagnostic",
	}},
	{componentSwitch, "motion_activated", "Motion Activated", accessory.MotionActivatedOn, nil},
	{componentSwitch, "privacy", "Privacy Mode", accessory.PrivacyOn, nil},
}

func entities(t *accessory.Table) []entity {
	all := networkEntities
	if t.Kind == accessory.KindCamera {
		all = cameraEntities
	}

	present := make([]entity, 0, len(all))
	for _, e := range all {
		if t.Has(e.id) {
			present = append(present, e)
		}
	}
	return present
}

func deviceBlock(t *accessory.Table) map[string]interface{} {
	info := t.Info()
	return map[string]interface{}{
		"identifiers":  []string{NodeID(t)},
		"name":         info.Name,
		"manufacturer": info.Manufacturer,
		"model":        info.Model,
		"sw_version":   info.Firmware,
	}
}

// DiscoveryMessages are the retained Home Assistant configs for a table
func DiscoveryMessages(tp Topics, t *accessory.Table) ([]Message, error) {
	node := NodeID(t)
	dev := deviceBlock(t)

	configs := make(map[string]map[string]interface{})
	order := make([]string, 0)
	add := func(component, object string, cfg map[string]interface{}) {
		topic := tp.config(component, node, object)
		cfg["device"] = dev
		cfg["availability_topic"] = tp.availability()
		configs[topic] = cfg
		order = append(order, topic)
	}

	for _, e := range entities(t) {
		cfg := map[string]interface{}{
			"unique_id":   node + "_" + e.object,
			"state_topic": tp.state(node, e.object),
		}
		if e.name != "" {
			cfg["name"] = e.name
		} else {
			cfg["name"] = nil
		}
		if t.Writable(e.id) || e.component == componentAlarm {
			cfg["command_topic"] = tp.command(node, e.object)
		}
		for k, v := range e.extra {
			cfg[k] = v
		}
		add(e.component, e.object, cfg)
	}

	if t.Kind == accessory.KindCamera {
		add(componentCamera, "thumbnail", map[string]interface{}{
			"name":      "Thumbnail",
			"unique_id": node + "_thumbnail",
			"topic":     tp.image(node),
		})
	}

	msgs := make([]Message, 0, len(order))
	for _, topic := range order {
		data, err := json.Marshal(configs[topic])
		if err != nil {
			return nil, errors.Wrapf(err, "encoding discovery config %s", topic)
		}
		msgs = append(msgs, Message{Topic: topic, Payload: data, Retained: true})
	}

	return msgs, nil
}

var alarmStates = map[blink.SecurityState]string{
	blink.StayArm:        "armed_home",
	blink.AwayArm:        "armed_away",
	blink.Disarmed:       "disarmed",
	blink.AlarmTriggered: "triggered",
}

var alarmCommands = map[string]blink.SecurityState{
	"ARM_HOME": blink.StayArm,
	"ARM_AWAY": blink.AwayArm,
	"DISARM":   blink.Disarmed,
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func formatState(e entity, v interface{}) string {
	if e.component == componentAlarm {
		if i, ok := v.(int); ok {
			if s, ok := alarmStates[blink.SecurityState(i)]; ok {
				return s
			}
		}
	}

	switch val := v.(type) {
	case bool:
		return onOff(val)
	case int:
		if e.component == componentBinarySensor {
			return onOff(val != 0)
		}
	case float64:
		return fmt.Sprintf("%.1f", val)
	}

	return fmt.Sprintf("%v", v)
}

// StateMessages reads every entity of the table.  Entities whose read
// fails are skipped and the first error is returned with the rest.
func StateMessages(ctx context.Context, tp Topics, t *accessory.Table) ([]Message, error) {
	node := NodeID(t)

	var first error
	msgs := make([]Message, 0)
	for _, e := range entities(t) {
		v, err := t.Read(ctx, e.id)
		if err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		msgs = append(msgs, Message{
			Topic:    tp.state(node, e.object),
			Payload:  []byte(formatState(e, v)),
			Retained: true,
		})
	}

	return msgs, first
}

// Command applies a Home Assistant command payload to the table
func Command(ctx context.Context, t *accessory.Table, object, payload string) error {
	payload = strings.TrimSpace(payload)

	for _, e := range entities(t) {
		if e.object != object {
			continue
		}

		switch e.component {
		case componentAlarm:
			target, ok := alarmCommands[strings.ToUpper(payload)]
			if !ok {
				return errors.Wrapf(accessory.ErrInvalidValue, "alarm command %q", payload)
			}
			return t.Write(ctx, accessory.SecuritySystemTargetState, int(target))
		case componentSwitch:
			switch strings.ToUpper(payload) {
			case "ON":
				return t.Write(ctx, e.id, true)
			case "OFF":
				return t.Write(ctx, e.id, false)
			}
			return errors.Wrapf(accessory.ErrInvalidValue, "switch command %q", payload)
		}

		return errors.Wrapf(accessory.ErrReadOnly, "%s on %s", object, t.ID)
	}

	return errors.Wrapf(accessory.ErrUnknownCharacteristic, "%s on %s", object, t.ID)
}
