package domain

// KeyPrefix namespaces every key the service writes to the KV database.
const KeyPrefix = "kc:"
