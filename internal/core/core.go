/*
Core implements the main event pipeline.

# Module
  - in-memory bus: receives market data & execution reports then pushes them to the strategy runtime
  - strategy runtime: single thread strategy invoker over per-symbol market state
  - risk engine: validates order intents created by the strategy runtime
  - execution connector: receives accepted intents, reports fills back onto the bus

# Source
 1. market data from feed adapters
 2. execution reports from the connector
 3. synthetic events from tests and replay

# Produce
  - validated order intents to the execution connector

# Sharded
  - tradingPair + strategy
*/
package core
