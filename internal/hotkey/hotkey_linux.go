//go:build linux

package hotkey

/*
#cgo pkg-config: x11 xtst
#include <X11/Xlib.h>
#include <X11/keysym.h>
#include <X11/extensions/XTest.h>
#include <stdlib.h>

Display* displayPtr = NULL;

int grabKey(int keycode, int modifiers) {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
    }
    if (displayPtr == NULL) return 0;

    Window root = DefaultRootWindow(displayPtr);
    XGrabKey(displayPtr, keycode, modifiers, root, False, GrabModeAsync, GrabModeAsync);
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);

    return 1;
}

int ungrabKey(int keycode, int modifiers) {
    if (displayPtr == NULL) return 0;

    Window root = DefaultRootWindow(displayPtr);
    XUngrabKey(displayPtr, keycode, modifiers, root);
    XSync(displayPtr, False);

    return 1;
}

int lookupKeycode(const char* name) {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
    }
    if (displayPtr == NULL) return 0;

    KeySym sym = XStringToKeysym(name);
    if (sym == NoSymbol) return 0;
    return XKeysymToKeycode(displayPtr, sym);
}

int checkEvent(int* keycode, int* pressed) {
    if (displayPtr == NULL) return 0;

    XEvent event;
    if (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

type grab struct {
	keycode   int
	modifiers int
}

type linuxManager struct {
	mu        sync.Mutex
	callbacks map[int]Handler
	grabs     map[string]grab
	stop      chan struct{}
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	mgr := &linuxManager{
		callbacks: make(map[int]Handler),
		grabs:     make(map[string]grab),
		stop:      make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

func (m *linuxManager) Register(accel string, callback Handler) error {
	acc, err := ParseAccelerator(accel)
	if err != nil {
		return err
	}

	name := C.CString(acc.X11KeySym())
	defer C.free(unsafe.Pointer(name))

	keycode := int(C.lookupKeycode(name))
	if keycode == 0 {
		return fmt.Errorf("no keycode for %s", acc)
	}
	modifiers := acc.X11Modifiers()

	if C.grabKey(C.int(keycode), C.int(modifiers)) == 0 {
		return fmt.Errorf("failed to grab key %s", acc)
	}

	m.mu.Lock()
	m.callbacks[keycode] = callback
	m.grabs[accel] = grab{keycode: keycode, modifiers: modifiers}
	m.mu.Unlock()
	return nil
}

func (m *linuxManager) eventLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			var keycode, pressed C.int
			if C.checkEvent(&keycode, &pressed) != 0 {
				m.mu.Lock()
				cb, ok := m.callbacks[int(keycode)]
				m.mu.Unlock()
				if ok {
					cb(pressed == 1)
				}
			}
		}
	}
}

func (m *linuxManager) Unregister(accel string) error {
	m.mu.Lock()
	g, ok := m.grabs[accel]
	delete(m.grabs, accel)
	if ok {
		delete(m.callbacks, g.keycode)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if C.ungrabKey(C.int(g.keycode), C.int(g.modifiers)) == 0 {
		return fmt.Errorf("failed to ungrab key %s", accel)
	}
	return nil
}

func (m *linuxManager) Close() error {
	close(m.stop)
	return nil
}