package syscallapi

// Syscall numbers, Linux x86-64 ABI (spec.md §6.4). TableSize covers the
// full numbering space through SYS_RSEQ; most slots are never bound to a
// handler and fall through to ENOSYS.
const TableSize = 335

const (
	SysRead                  = 0
	SysWrite                 = 1
	SysOpen                  = 2
	SysClose                 = 3
	SysStat                  = 4
	SysFstat                 = 5
	SysLstat                 = 6
	SysPoll                  = 7
	SysLseek                 = 8
	SysMmap                  = 9
	SysMprotect              = 10
	SysMunmap                = 11
	SysBrk                   = 12
	SysRtSigaction           = 13
	SysRtSigprocmask         = 14
	SysIoctl                 = 16
	SysAccess                = 21
	SysPipe                  = 22
	SysSchedYield            = 24
	SysMremap                = 25
	SysMadvise               = 28
	SysDup                   = 32
	SysDup2                  = 33
	SysNanosleep             = 35
	SysGetpid                = 39
	SysSocket                = 41
	SysConnect               = 42
	SysAccept                = 43
	SysSendto                = 44
	SysRecvfrom              = 45
	SysShutdown              = 48
	SysBind                  = 49
	SysListen                = 50
	SysGetsockname           = 51
	SysGetpeername           = 52
	SysSocketpair            = 53
	SysSetsockopt            = 54
	SysGetsockopt            = 55
	SysClone                 = 56
	SysFork                  = 57
	SysVfork                 = 58
	SysExecve                = 59
	SysExit                  = 60
	SysWait4                 = 61
	SysKill                  = 62
	SysUname                 = 63
	SysFcntl                 = 72
	SysFlock                 = 73
	SysFsync                 = 74
	SysFdatasync             = 75
	SysTruncate              = 76
	SysFtruncate             = 77
	SysGetdents              = 78
	SysGetcwd                = 79
	SysChdir                 = 80
	SysRename                = 82
	SysMkdir                 = 83
	SysRmdir                 = 84
	SysCreat                 = 85
	SysLink                  = 86
	SysUnlink                = 87
	SysSymlink               = 88
	SysReadlink              = 89
	SysChmod                 = 90
	SysFchmod                = 91
	SysChown                 = 92
	SysFchown                = 93
	SysLchown                = 94
	SysUmask                 = 95
	SysGettimeofday          = 96
	SysGetrlimit             = 97
	SysGetrusage             = 98
	SysSysinfo               = 99
	SysGetuid                = 102
	SysGetgid                = 104
	SysSetuid                = 105
	SysSetgid                = 106
	SysGeteuid               = 107
	SysGetegid               = 108
	SysGetppid               = 110
	SysGetpgrp               = 111
	SysSetsid                = 112
	SysSetreuid              = 113
	SysSetregid              = 114
	SysGetgroups             = 115
	SysSetresuid             = 117
	SysGetresuid             = 118
	SysSetresgid             = 119
	SysGetresgid             = 120
	SysGetpgid               = 121
	SysSetfsuid              = 122
	SysSetfsgid              = 123
	SysGetsid                = 124
	SysCapget                = 125
	SysCapset                = 126
	SysRtSigpending          = 127
	SysSigaltstack           = 131
	SysPersonality           = 135
	SysStatfs                = 137
	SysFstatfs               = 138
	SysGetpriority           = 140
	SysSetpriority           = 141
	SysSchedSetscheduler     = 144
	SysSchedGetscheduler     = 145
	SysSchedGetPriorityMax   = 146
	SysSchedGetPriorityMin   = 147
	SysMlock                 = 149
	SysMunlock               = 150
	SysMlockall              = 151
	SysMunlockall            = 152
	SysPrctl                 = 157
	SysArchPrctl             = 158
	SysSetrlimit             = 160
	SysSync                  = 162
	SysSettimeofday          = 164
	SysSethostname           = 170
	SysSetdomainname         = 171
	SysGettid                = 186
	SysTkill                 = 200
	SysTime                  = 201
	SysFutex                 = 202
	SysSchedSetaffinity      = 203
	SysSchedGetaffinity      = 204
	SysEpollCreate           = 213
	SysGetdents64            = 217
	SysClockSettime          = 227
	SysClockGettime          = 228
	SysClockGetres           = 229
	SysExitGroup             = 231
	SysEpollWait             = 232
	SysEpollCtl              = 233
	SysTgkill                = 234
	SysWaitid                = 247
	SysInotifyInit           = 253
	SysInotifyAddWatch       = 254
	SysInotifyRmWatch        = 255
	SysOpenat                = 257
	SysMkdirat               = 258
	SysFchownat              = 260
	SysNewfstatat            = 262
	SysUnlinkat              = 263
	SysRenameat              = 264
	SysLinkat                = 265
	SysSymlinkat             = 266
	SysReadlinkat            = 267
	SysFchmodat              = 268
	SysFaccessat             = 269
	SysEpollPwait            = 281
	SysSignalfd              = 282
	SysTimerfdCreate         = 283
	SysEventfd               = 284
	SysTimerfdSettime        = 286
	SysTimerfdGettime        = 287
	SysAccept4               = 288
	SysSignalfd4             = 289
	SysEventfd2              = 290
	SysEpollCreate1          = 291
	SysDup3                  = 292
	SysPipe2                 = 293
	SysInotifyInit1          = 294
	SysPrlimit64             = 302
	SysSyncfs                = 306
	SysGetrandom             = 318
	SysMemfdCreate           = 319
	SysSeccomp               = 317
	SysRseq                  = 334
)
