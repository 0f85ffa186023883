package config

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded (without tearing down a stream's session) are
// tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	StreamsChanged bool
	StreamChanges  []StreamDiff

	ChannelsChanged bool
}

// StreamDiff describes what changed for a single stream between two configs.
type StreamDiff struct {
	StreamID           string
	VADThresholdChanged bool
	ASRFallbackChanged  bool
	Added               bool
	Removed             bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldStreams := make(map[string]*StreamConfig, len(old.Streams))
	for i := range old.Streams {
		oldStreams[old.Streams[i].StreamID] = &old.Streams[i]
	}
	newStreams := make(map[string]*StreamConfig, len(new.Streams))
	for i := range new.Streams {
		newStreams[new.Streams[i].StreamID] = &new.Streams[i]
	}

	for id, o := range oldStreams {
		n, exists := newStreams[id]
		if !exists {
			d.StreamChanges = append(d.StreamChanges, StreamDiff{StreamID: id, Removed: true})
			d.StreamsChanged = true
			continue
		}
		sd := StreamDiff{StreamID: id}
		if o.VADThreshold != n.VADThreshold {
			sd.VADThresholdChanged = true
		}
		if o.ASRFallback != n.ASRFallback {
			sd.ASRFallbackChanged = true
		}
		if sd.VADThresholdChanged || sd.ASRFallbackChanged {
			d.StreamChanges = append(d.StreamChanges, sd)
			d.StreamsChanged = true
		}
	}

	for id := range newStreams {
		if _, exists := oldStreams[id]; !exists {
			d.StreamChanges = append(d.StreamChanges, StreamDiff{StreamID: id, Added: true})
			d.StreamsChanged = true
		}
	}

	if len(old.Channels) != len(new.Channels) {
		d.ChannelsChanged = true
	} else {
		for i := range old.Channels {
			n, ok := findChannel(new.Channels, old.Channels[i].ChannelID)
			if !ok || !channelEqual(old.Channels[i], n) {
				d.ChannelsChanged = true
				break
			}
		}
	}

	return d
}

// findChannel returns the ChannelEntry in channels with the given ID.
func findChannel(channels []ChannelEntry, id string) (ChannelEntry, bool) {
	for _, c := range channels {
		if c.ChannelID == id {
			return c, true
		}
	}
	return ChannelEntry{}, false
}

// channelEqual compares the scalar fields that affect dispatch behaviour.
// Options contents are intentionally not compared; channels with
// identical routing fields but different provider options are treated as
// unchanged to avoid needless channel reconnects.
func channelEqual(a, b ChannelEntry) bool {
	return a.ChannelType == b.ChannelType &&
		a.MinSeverity == b.MinSeverity &&
		a.Enabled == b.Enabled
}
