package ble

// Observer receives manager notifications. Callbacks run on the goroutine that
// delivered the triggering event, after the manager's lock is released, so an
// observer may call back into the Manager.
type Observer interface {
	// DidUpdateAdapterState reports every adapter transition, including the
	// ones that prevent scanning.
	DidUpdateAdapterState(state AdapterState)
	// DidUpdateDeviceList delivers a fresh snapshot of the device list.
	DidUpdateDeviceList(devices []Peripheral)
	DidConnectToDevice(p Peripheral)
	DidFailToConnect(p Peripheral, err error)
	// DidDisconnectFromDevice reports a confirmed disconnect. err is the
	// platform's reason, or nil for a requested disconnect.
	DidDisconnectFromDevice(p Peripheral, err error)
	// DidFinishDiscovery fires once every service has reported its
	// characteristics and all reads have been issued.
	DidFinishDiscovery(p Peripheral, chars []Characteristic)
	DidReadCharacteristic(p Peripheral, c Characteristic, value []byte)
	DidUpdateSignalQuality(p Peripheral, rssi int, quality SignalQuality)
	// DidFail reports errors that end a single operation without changing
	// the connection state.
	DidFail(err error)
}

// NopObserver implements Observer with no-ops. Embed it to implement only
// the callbacks you need.
type NopObserver struct{}

func (NopObserver) DidUpdateAdapterState(AdapterState)                       {}
func (NopObserver) DidUpdateDeviceList([]Peripheral)                         {}
func (NopObserver) DidConnectToDevice(Peripheral)                            {}
func (NopObserver) DidFailToConnect(Peripheral, error)                       {}
func (NopObserver) DidDisconnectFromDevice(Peripheral, error)                {}
func (NopObserver) DidFinishDiscovery(Peripheral, []Characteristic)          {}
func (NopObserver) DidReadCharacteristic(Peripheral, Characteristic, []byte) {}
func (NopObserver) DidUpdateSignalQuality(Peripheral, int, SignalQuality)    {}
func (NopObserver) DidFail(error)                                            {}

var _ Observer = NopObserver{}

// notifications collects observer calls made while the manager lock is held.
type notifications []func(Observer)

func (n *notifications) add(f func(Observer)) {
	*n = append(*n, f)
}

func (n notifications) dispatch(o Observer) {
	if o == nil {
		return
	}
	for _, f := range n {
		f(o)
	}
}
