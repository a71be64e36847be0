package syscallapi

// registerAll wires every handler group into a freshly constructed
// Table. Called exactly once per Table via sync.Once in ensureInit.
func registerAll(t *Table) {
	registerIdentity(t)
	registerFD(t)
	registerMemory(t)
	registerSockets(t)
	registerProcess(t)
	registerSignals(t)
	registerTime(t)
	registerSched(t)
	registerEvents(t)
	registerMisc(t)
}
