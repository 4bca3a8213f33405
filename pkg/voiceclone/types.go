package voiceclone

// UploadResult is the JSON body returned by POST /upload.
type UploadResult struct {
	Filename  string `json:"filename"`
	SavedPath string `json:"saved_path"`
}

// PreprocessRequest is the JSON body sent to POST /preprocess.
type PreprocessRequest struct {
	Profile  string `json:"profile"`
	Filename string `json:"filename"`
}

// TrainRequest is the JSON body sent to POST /train. Zero values are
// meaningful to the server (e.g. Epochs 0 selects the server default), so
// the full struct is always sent.
type TrainRequest struct {
	Profile          string `json:"profile"`
	BatchSize        int    `json:"batch_size"`
	Epochs           int    `json:"epochs"`
	MaxLen           int    `json:"max_len"`
	AutoSelectEpoch  bool   `json:"auto_select_epoch"`
	AutoTuneProfile  bool   `json:"auto_tune_profile"`
	AutoBuildLexicon bool   `json:"auto_build_lexicon"`
	SelectThorough   bool   `json:"select_thorough"`
	SelectUseWER     bool   `json:"select_use_wer"`
	EarlyStop        bool   `json:"early_stop"`
}

// StreamRequest is the JSON body sent to POST /stream to start a synthesis
// stream. ModelPath and RefWavPath are optional overrides; when empty the
// server picks the profile's best checkpoint and reference sample.
type StreamRequest struct {
	Speaker    string `json:"speaker"`
	Text       string `json:"text"`
	ModelPath  string `json:"model_path,omitempty"`
	RefWavPath string `json:"ref_wav_path,omitempty"`
}

// Profile describes one voice profile known to the server, including the
// inventory counters the workflow uses to gate stages.
type Profile struct {
	Name             string `json:"name"`
	HasData          bool   `json:"has_data"`
	RawFiles         int    `json:"raw_files"`
	ProcessedWavs    int    `json:"processed_wavs"`
	HasProfile       bool   `json:"has_profile"`
	BestCheckpoint   string `json:"best_checkpoint"`
	LatestCheckpoint string `json:"latest_checkpoint"`
}

// profilesResponse is the JSON body returned by GET /profiles.
type profilesResponse struct {
	Profiles []Profile `json:"profiles"`
}
