package ddd

// InstrumentationName is the name under which tracers and meters are created.
const InstrumentationName = "github.com/terraskye/ddd"

// InstrumentationVersion is reported alongside InstrumentationName.
const InstrumentationVersion = "0.1.0"
