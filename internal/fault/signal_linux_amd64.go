//go:build linux && amd64

package fault

/*
#define _GNU_SOURCE
#include <signal.h>
#include <ucontext.h>
#include <stdint.h>

extern int heaptrapGoFaultHandler(uintptr_t addr, uint64_t errorCode, int sig);

static void heaptrap_sigaction_handler(int sig, siginfo_t *info, void *ucontextVoid) {
	ucontext_t *uc = (ucontext_t *)ucontextVoid;
	uint64_t errorCode = (uint64_t)uc->uc_mcontext.gregs[REG_ERR];

	int disposition = heaptrapGoFaultHandler((uintptr_t)info->si_addr, errorCode, sig);
	if (disposition != 0) {
		struct sigaction dfl;
		dfl.sa_handler = SIG_DFL;
		sigemptyset(&dfl.sa_mask);
		dfl.sa_flags = 0;
		sigaction(sig, &dfl, NULL);
		raise(sig);
	}
}

static int heaptrap_install(void) {
	struct sigaction sa;
	sa.sa_sigaction = heaptrap_sigaction_handler;
	sa.sa_flags = SA_SIGINFO | SA_NODEFER;
	sigemptyset(&sa.sa_mask);

	if (sigaction(SIGSEGV, &sa, NULL) != 0) {
		return -1;
	}
	if (sigaction(SIGBUS, &sa, NULL) != 0) {
		return -1;
	}
	return 0;
}
*/
import "C"

import (
	"fmt"
)

func doInstall() error {
	if C.heaptrap_install() != 0 {
		return fmt.Errorf("fault: sigaction install failed")
	}
	return nil
}

//export heaptrapGoFaultHandler
func heaptrapGoFaultHandler(addr C.uintptr_t, errorCode C.uint64_t, sig C.int) C.int {
	c := ClassifyX86_64ErrorCode(uint64(errorCode))
	d := Handle(uintptr(addr), c.IsWrite, c.Recognized)
	return C.int(dispositionCode(d))
}
