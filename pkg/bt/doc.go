// Package bt defines the vocabulary shared with the radio stack: system
// state tiers, disconnect reasons, TWS link types and radio events.
package bt
