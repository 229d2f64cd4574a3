package script

// pythonPreamble is the generated runtime surface for python actions. The
// three __MDL_*__ tokens are replaced with quoted paths at render time
// (token substitution rather than a format string, since the preamble
// itself contains % formatting).
const pythonPreamble = `#!/usr/bin/env python3
import atexit as _mdl_atexit
import json as _mdl_json


class _MdlRuntime:
    _VALID_TYPES = {"int", "string", "bool", "file", "directory"}

    def __init__(self, context_path, output_path, retain_flag):
        with open(context_path, encoding="utf-8") as f:
            data = _mdl_json.load(f)
        self.sys = data["sys"]
        self.env = data["env"]
        self.args = data["args"]
        self.flags = data["flags"]
        self.actions = data["actions"]
        self._retained = data["retained"]
        self._output_path = output_path
        self._retain_flag = retain_flag
        self._outputs = {}
        _mdl_atexit.register(self._flush)

    def ret(self, name, value, type):
        if type not in self._VALID_TYPES:
            raise ValueError("invalid return type %r" % (type,))
        if type == "int":
            value = int(value)
        elif type == "bool":
            value = bool(value)
        else:
            value = str(value)
        self._outputs[name] = {"type": type, "value": value}
        self._flush()

    def dep(self, _ref):
        pass

    def weak(self, _ref):
        pass

    def soft(self, _ref, _retainer):
        pass

    def retain(self):
        open(self._retain_flag, "w").close()

    def is_retained(self, name):
        return bool(self._retained.get(name))

    def _flush(self):
        with open(self._output_path, "w", encoding="utf-8") as f:
            _mdl_json.dump(self._outputs, f, indent=2)


mdl = _MdlRuntime(__MDL_CONTEXT_JSON__, __MDL_OUTPUT_JSON__, __MDL_RETAIN_FLAG__)

`
