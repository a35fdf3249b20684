package constants

import "time"

const (
	// TickInterval is the period of every session countdown
	TickInterval = time.Second

	// WhackAMoleDuration is the length of a whack-a-mole session in seconds
	WhackAMoleDuration int = 30
	// WhackAMoleHoles is the number of holes a mole can pop out of
	WhackAMoleHoles int = 9
	// MolePopUpMin is the shortest time a mole stays up
	MolePopUpMin = 500 * time.Millisecond
	// MolePopUpMax is the longest time a mole stays up
	MolePopUpMax = 1500 * time.Millisecond
	// MoleBonkDuration is how long a hit mole shows as bonked
	MoleBonkDuration = 300 * time.Millisecond

	// TypingTestDuration is the length of a typing test in seconds
	TypingTestDuration int = 60
	// TypingTestWarningThreshold is the remaining time at which the timer turns to a warning
	TypingTestWarningThreshold int = 10

	// MemoryPairs is the number of distinct card values on the board
	MemoryPairs int = 9
	// MemoryDuration is the length of a memory session in seconds
	MemoryDuration int = 60
	// MemoryFlipBackDelay is how long an unmatched pair stays face up
	MemoryFlipBackDelay = 900 * time.Millisecond
	// MemoryRestartCountdown is the number of seconds counted down before a restart
	MemoryRestartCountdown int = 3
	// MemoryLossScore is the last score recorded for a lost session (largest exact integer in a float64)
	MemoryLossScore int = 9007199254740991
)
