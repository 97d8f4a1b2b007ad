package registry

// ResetProcess drops the process registry so each test starts uninitialized.
func ResetProcess() {
	process = &processState{}
}
