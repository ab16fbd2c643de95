package sandbox

// Wire types for the sandbox container's HTTP API. Every endpoint wraps
// its result in a code/msg/data envelope; code 0 is success.

type apiResponse[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data T      `json:"data"`
}

type execCommandRequest struct {
	SessionID string `json:"session_id"`
	ExecDir   string `json:"exec_dir"`
	Command   string `json:"command"`
}

type viewShellRequest struct {
	SessionID string `json:"session_id"`
	Console   bool   `json:"console"`
}

type waitForProcessRequest struct {
	SessionID string `json:"session_id"`
	Seconds   *int   `json:"seconds,omitempty"`
}

type writeToProcessRequest struct {
	SessionID  string `json:"session_id"`
	InputText  string `json:"input_text"`
	PressEnter bool   `json:"press_enter"`
}

type killProcessRequest struct {
	SessionID string `json:"session_id"`
}

// ConsoleRecord is one prompt/command/output triple from a shell session.
type ConsoleRecord struct {
	PS1     string `json:"ps1"`
	Command string `json:"command"`
	Output  string `json:"output"`
}

type ShellExecResult struct {
	SessionID      string          `json:"session_id"`
	Command        string          `json:"command"`
	Status         string          `json:"status"`
	ReturnCode     *int            `json:"returncode,omitempty"`
	Output         string          `json:"output,omitempty"`
	ConsoleRecords []ConsoleRecord `json:"console_records,omitempty"`
}

type ShellViewResult struct {
	SessionID      string          `json:"session_id"`
	Output         string          `json:"output"`
	ConsoleRecords []ConsoleRecord `json:"console_records,omitempty"`
}

type ShellWaitResult struct {
	ReturnCode int `json:"returncode"`
}

type ShellWriteResult struct {
	Status string `json:"status"`
}

type ShellKillResult struct {
	Status     string `json:"status"`
	ReturnCode int    `json:"returncode"`
}

type fileReadRequest struct {
	Filepath  string `json:"filepath"`
	StartLine *int   `json:"start_line,omitempty"`
	EndLine   *int   `json:"end_line,omitempty"`
	Sudo      bool   `json:"sudo"`
	MaxLength int    `json:"max_length,omitempty"`
}

type fileWriteRequest struct {
	Filepath        string `json:"filepath"`
	Content         string `json:"content"`
	Append          bool   `json:"append"`
	LeadingNewline  bool   `json:"leading_newline"`
	TrailingNewline bool   `json:"trailing_newline"`
	Sudo            bool   `json:"sudo"`
}

type fileReplaceRequest struct {
	Filepath string `json:"filepath"`
	OldText  string `json:"old_text"`
	NewText  string `json:"new_text"`
	Sudo     bool   `json:"sudo"`
}

type fileSearchRequest struct {
	Filepath string `json:"filepath"`
	Regex    string `json:"regex"`
	Sudo     bool   `json:"sudo"`
}

type fileFindRequest struct {
	DirPath     string `json:"dir_path"`
	GlobPattern string `json:"glob_pattern"`
}

type filePathRequest struct {
	Filepath string `json:"filepath"`
}

type FileReadResult struct {
	Filepath string `json:"filepath"`
	Content  string `json:"content"`
}

type FileWriteResult struct {
	Filepath     string `json:"filepath"`
	BytesWritten int    `json:"bytes_written"`
}

type FileReplaceResult struct {
	Filepath     string `json:"filepath"`
	Replacements int    `json:"replaced_count"`
}

type FileSearchResult struct {
	Filepath string   `json:"filepath"`
	Matches  []string `json:"matches"`
}

type FileFindResult struct {
	Files []string `json:"files"`
}

type FileCheckResult struct {
	Exists bool `json:"exists"`
}

type FileDeleteResult struct {
	Filepath string `json:"filepath"`
}

// ProcessInfo is one supervised service inside the container.
type ProcessInfo struct {
	Name        string `json:"name"`
	Group       string `json:"group"`
	State       string `json:"statename"`
	Description string `json:"description"`
}
