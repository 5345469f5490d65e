package config

type WorkerKeyStruct struct {
	GenerationQueue string
}

var WorkerKey = &WorkerKeyStruct{
	GenerationQueue: "timetable_generation_queue",
}
