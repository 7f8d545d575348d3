package topics

const (
	// Rumble: todos os eventos do ciclo de vida, chave = round id
	RumbleEvents = "rumble_events"

	// DLQs
	RumbleEventsDLQ = "rumble_events_dlq"
)

// Canais Redis Pub/Sub
const (
	SpectatorBroadcast = "rumble_spectator_broadcast"
)
